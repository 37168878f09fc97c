// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import "strings"

// =============================================================================
// Context Assembly
// =============================================================================

const (
	// ContextDelimiter marks the boundaries of injected knowledge so the
	// answering prompt can reference it unambiguously.
	ContextDelimiter = "########"

	// DefaultContextLimit bounds the assembled context, leaving room in
	// the model window for history and the query itself.
	DefaultContextLimit = 8000
)

// AssembleContext packs passages into a delimiter-wrapped block.
//
// Description:
//
//	Passages are taken in ranking order and added whole, stopping at
//	the first passage that would push the running length past the
//	limit. Passages are never truncated. The result is wrapped in
//	ContextDelimiter on both sides, so its length may exceed limit by
//	at most the two delimiters.
//
// Inputs:
//
//	passages - Ranked passages, best first.
//	limit - Character budget for the packed passages. Non-positive
//	selects DefaultContextLimit.
//
// Outputs:
//
//	string - The wrapped context block, or "" when no passage fits.
//
// Thread Safety: Safe for concurrent use.
func AssembleContext(passages []Passage, limit int) string {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	used := 0
	for _, p := range passages {
		if used+len(p.Text) >= limit {
			break
		}
		b.WriteString(p.Text)
		used += len(p.Text)
	}
	if b.Len() == 0 {
		return ""
	}
	return ContextDelimiter + b.String() + ContextDelimiter
}
