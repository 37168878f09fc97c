// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rag retrieves knowledge-base passages for answer grounding:
// it embeds the user query, searches the vector index, and assembles the
// matched passages into a size-bounded context block.
package rag

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
	"github.com/carelyhealth/carely/services/pinecone"
)

// =============================================================================
// Constants and Metrics
// =============================================================================

const (
	// DefaultNamespace is the vector index namespace holding the
	// knowledge base.
	DefaultNamespace = "carely"

	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 3
)

var ragTracer = otel.Tracer("carely.assistant.rag")

var (
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "rag",
		Name:      "retrievals_total",
		Help:      "Knowledge-base retrievals by outcome.",
	}, []string{"outcome"})

	retrievedPassages = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carely",
		Subsystem: "rag",
		Name:      "retrieved_passages",
		Help:      "Passages returned per retrieval.",
		Buckets:   prometheus.LinearBuckets(0, 1, 6),
	})
)

// =============================================================================
// Retriever
// =============================================================================

// VectorQuerier is the slice of the vector index client the retriever
// needs. *pinecone.Client satisfies it.
type VectorQuerier interface {
	Query(ctx context.Context, vector []float32, topK int, namespace string) ([]pinecone.Match, error)
}

// Passage is one retrieved knowledge-base chunk.
type Passage struct {
	// Text is the chunk content.
	Text string `json:"text"`

	// Source is the originating file name, if recorded at ingestion.
	Source string `json:"source"`

	// ChunkIndex is the chunk's sequence number within its document.
	ChunkIndex int `json:"chunk_index"`

	// Score is the similarity score from the index.
	Score float64 `json:"score"`
}

// Retriever embeds queries and searches the knowledge base.
//
// Description:
//
//	Retrieval is fail-soft throughout: embedding or index errors are
//	logged and produce an empty result, never an error, so chat can
//	always continue without grounding context.
//
// Thread Safety: Safe for concurrent use if the underlying clients are.
type Retriever struct {
	embedder  llm.EmbeddingClient
	index     VectorQuerier
	namespace string
	topK      int
	logger    *slog.Logger

	// ContextLimit is the character budget for assembled context
	// blocks. Non-positive selects DefaultContextLimit.
	ContextLimit int
}

// NewRetriever builds a retriever over the given embedder and index.
//
// Inputs:
//
//	embedder - Embedding backend. Must not be nil.
//	index - Vector index client. Must not be nil.
//	namespace - Index namespace. Empty selects DefaultNamespace.
//	topK - Passages per query. Non-positive selects DefaultTopK.
//	logger - Logger for retrieval failures. If nil, slog.Default().
func NewRetriever(embedder llm.EmbeddingClient, index VectorQuerier, namespace string, topK int, logger *slog.Logger) *Retriever {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		topK:      topK,
		logger:    logger,
	}
}

// Query retrieves the passages most similar to the given text.
//
// Description:
//
//	Embeds the text and queries the index, preserving the index's
//	ranking order. Empty or whitespace-only text short-circuits to an
//	empty result, as does any embedding or index failure.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	text - The query text.
//
// Outputs:
//
//	[]Passage - Ranked passages. Empty, never nil, on miss or failure.
//
// Thread Safety: Safe for concurrent use.
func (r *Retriever) Query(ctx context.Context, text string) []Passage {
	ctx, span := ragTracer.Start(ctx, "rag.Retriever.Query")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		retrievalsTotal.WithLabelValues("empty_query").Inc()
		return []Passage{}
	}

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Warn("query embedding failed, continuing without context",
			slog.String("error", err.Error()))
		retrievalsTotal.WithLabelValues("embed_error").Inc()
		return []Passage{}
	}

	matches, err := r.index.Query(ctx, vector, r.topK, r.namespace)
	if err != nil {
		r.logger.Warn("vector index query failed, continuing without context",
			slog.String("error", err.Error()),
			slog.String("namespace", r.namespace))
		retrievalsTotal.WithLabelValues("index_error").Inc()
		return []Passage{}
	}

	passages := make([]Passage, 0, len(matches))
	for _, m := range matches {
		text := m.Metadata["text"]
		if text == "" {
			continue
		}
		chunkIndex := 0
		if raw := m.Metadata["chunk_index"]; raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				chunkIndex = n
			}
		}
		passages = append(passages, Passage{
			Text:       text,
			Source:     m.Metadata["source_file"],
			ChunkIndex: chunkIndex,
			Score:      m.Score,
		})
	}

	retrievalsTotal.WithLabelValues("ok").Inc()
	retrievedPassages.Observe(float64(len(passages)))
	span.SetAttributes(attribute.Int("passages", len(passages)))
	return passages
}

// ContextString retrieves passages and assembles them into a bounded,
// delimiter-wrapped context block for prompt injection.
//
// Outputs:
//
//	string - The assembled block, or "" when nothing was retrieved or
//	nothing fits the budget. Never exceeds ContextLimit plus the two
//	delimiters.
//
// Thread Safety: Safe for concurrent use.
func (r *Retriever) ContextString(ctx context.Context, text string) string {
	block, _ := r.ContextWithSources(ctx, text)
	return block
}

// ContextWithSources is ContextString plus the provenance of the
// retrieved passages, for surfacing in chat responses.
//
// Outputs:
//
//	string - The assembled context block, possibly "".
//	[]datatypes.SourceInfo - One entry per retrieved passage, in
//	ranking order. Empty when the block is empty.
//
// Thread Safety: Safe for concurrent use.
func (r *Retriever) ContextWithSources(ctx context.Context, text string) (string, []datatypes.SourceInfo) {
	passages := r.Query(ctx, text)
	block := AssembleContext(passages, r.ContextLimit)
	if block == "" {
		return "", nil
	}

	sources := make([]datatypes.SourceInfo, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, datatypes.SourceInfo{
			Source:     p.Source,
			ChunkIndex: p.ChunkIndex,
			Score:      p.Score,
		})
	}
	return block, sources
}
