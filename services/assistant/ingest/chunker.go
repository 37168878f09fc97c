// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"fmt"
	"strings"
)

// =============================================================================
// Line Chunking
// =============================================================================

const (
	// DefaultChunkSize is the number of lines per chunk.
	DefaultChunkSize = 9

	// DefaultStride is the number of overlap lines carried from the
	// previous chunk.
	DefaultStride = 3
)

// Chunk is one embeddable slice of a document.
type Chunk struct {
	// ID is the vector id, "{documentID}_{sequence}" with the sequence
	// starting at 1.
	ID string

	// Index is the 1-based chunk sequence number.
	Index int

	// Text is the chunk's lines concatenated without separators.
	Text string
}

// ChunkLines slices wrapped document lines into overlapping chunks.
//
// Description:
//
//	The cursor advances by chunkSize; each chunk starts stride lines
//	before the cursor, clamped to the document start, and spans
//	chunkSize lines clamped to the document end. For a document of N
//	lines this yields ceil(N/chunkSize) chunks, each overlapping its
//	predecessor by exactly stride lines except the first.
//
// Inputs:
//
//	documentID - Stable id prefix for the document. Re-ingesting the
//	same id overwrites the same vectors.
//	lines - Wrapped lines from ExtractLines.
//	chunkSize - Lines per chunk. Non-positive selects DefaultChunkSize.
//	stride - Overlap lines. Negative selects DefaultStride.
//
// Outputs:
//
//	[]Chunk - Chunks in document order. Empty for an empty document.
//
// Thread Safety: Safe for concurrent use.
func ChunkLines(documentID string, lines []string, chunkSize, stride int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if stride < 0 {
		stride = DefaultStride
	}

	var chunks []Chunk
	for i := 0; i < len(lines); i += chunkSize {
		iBegin := max(0, i-stride)
		iEnd := min(len(lines), iBegin+chunkSize)

		seq := len(chunks) + 1
		chunks = append(chunks, Chunk{
			ID:    fmt.Sprintf("%s_%d", documentID, seq),
			Index: seq,
			Text:  strings.Join(lines[iBegin:iEnd], ""),
		})
	}
	return chunks
}
