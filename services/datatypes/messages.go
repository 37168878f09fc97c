// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the shared wire-neutral chat types passed between
// the assistant service, the routing layer, and the LLM clients.
package datatypes

// Message is a single role-tagged chat message.
//
// Role is one of "system", "user", or "assistant". Unknown roles are
// normalized by the LLM clients at the provider boundary.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SourceInfo identifies the provenance of a retrieved knowledge passage.
type SourceInfo struct {
	// Source is the originating document, e.g. "stanford_services.pdf".
	Source string `json:"source"`

	// ChunkIndex is the 1-based chunk sequence number within the document.
	ChunkIndex int `json:"chunk_index,omitempty"`

	// Score is the similarity score reported by the vector index.
	Score float64 `json:"score,omitempty"`
}
