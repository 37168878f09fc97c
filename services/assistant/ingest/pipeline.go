// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/llm"
	"github.com/carelyhealth/carely/services/pinecone"
)

// =============================================================================
// Ingestion Pipeline
// =============================================================================

// DefaultRetryDelay is the pause between embedding retry attempts.
const DefaultRetryDelay = 10 * time.Second

// DefaultNamespace is the index namespace documents are written into.
const DefaultNamespace = "carely"

var ingestTracer = otel.Tracer("carely.assistant.ingest")

var (
	chunksUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "ingest",
		Name:      "chunks_upserted_total",
		Help:      "Chunks embedded and upserted into the vector index.",
	})

	embedRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "ingest",
		Name:      "embed_retries_total",
		Help:      "Embedding calls retried after a failure.",
	})
)

// VectorUpserter is the slice of the vector index client the pipeline
// needs. *pinecone.Client satisfies it.
type VectorUpserter interface {
	Upsert(ctx context.Context, vectors []pinecone.Vector, namespace string) (int, error)
}

// Pipeline embeds document chunks and upserts them into the index.
//
// Thread Safety: Safe for concurrent use if the underlying clients are.
type Pipeline struct {
	embedder  llm.EmbeddingClient
	index     VectorUpserter
	namespace string
	chunkSize int
	stride    int

	// RetryDelay is the pause between embedding attempts. Zero selects
	// DefaultRetryDelay.
	RetryDelay time.Duration

	// MaxRetries bounds embedding retries per chunk. Zero retries
	// until the context is cancelled.
	MaxRetries int

	logger *slog.Logger
}

// NewPipeline builds an ingestion pipeline.
//
// Inputs:
//
//	embedder - Embedding backend. Must not be nil.
//	index - Vector index client. Must not be nil.
//	namespace - Index namespace. Empty selects "carely".
//	chunkSize - Lines per chunk. Non-positive selects DefaultChunkSize.
//	stride - Overlap lines. Negative selects DefaultStride.
//	logger - Logger. If nil, slog.Default().
func NewPipeline(embedder llm.EmbeddingClient, index VectorUpserter, namespace string, chunkSize, stride int, logger *slog.Logger) *Pipeline {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if stride < 0 {
		stride = DefaultStride
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		chunkSize: chunkSize,
		stride:    stride,
		logger:    logger,
	}
}

// DocumentID derives a stable vector id prefix from a file path: the
// base name without extension, lowercased, with spaces and hyphens
// collapsed to underscores. Re-ingesting the same file therefore
// overwrites its previous vectors instead of duplicating them.
func DocumentID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	base = strings.ReplaceAll(base, " ", "_")
	return strings.ReplaceAll(base, "-", "_")
}

// Ingest extracts, chunks, embeds, and upserts one PDF document.
//
// Description:
//
//	Each chunk is embedded with retry: failed attempts wait RetryDelay
//	and try again, up to MaxRetries attempts (unbounded when zero),
//	aborting early if the context is cancelled. Chunks are upserted one
//	at a time so a crash mid-document loses at most one chunk.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	path - Filesystem path to the PDF.
//
// Outputs:
//
//	int - Number of chunks upserted.
//	error - Non-nil on extraction failure, retry exhaustion, upsert
//	failure, or cancellation.
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.Pipeline.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	lines, err := ExtractLines(path)
	if err != nil {
		return 0, err
	}
	return p.IngestLines(ctx, DocumentID(path), filepath.Base(path), lines)
}

// IngestLines chunks, embeds, and upserts already-extracted lines.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	docID - Stable vector id prefix, see DocumentID.
//	sourceFile - File name recorded in chunk metadata.
//	lines - Wrapped lines from ExtractLines or NormalizeLines.
//
// Outputs:
//
//	int - Number of chunks upserted.
//	error - Non-nil on retry exhaustion, upsert failure, or
//	cancellation.
func (p *Pipeline) IngestLines(ctx context.Context, docID, sourceFile string, lines []string) (int, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.Pipeline.IngestLines")
	defer span.End()

	chunks := ChunkLines(docID, lines, p.chunkSize, p.stride)
	p.logger.Info("document chunked",
		slog.String("document_id", docID),
		slog.Int("lines", len(lines)),
		slog.Int("chunks", len(chunks)))

	for _, chunk := range chunks {
		embedding, err := p.embedWithRetry(ctx, chunk)
		if err != nil {
			return chunk.Index - 1, err
		}

		vector := pinecone.Vector{
			ID:     chunk.ID,
			Values: embedding,
			Metadata: map[string]string{
				"text":        chunk.Text,
				"source_file": sourceFile,
				"chunk_index": strconv.Itoa(chunk.Index),
			},
		}
		if _, err := p.index.Upsert(ctx, []pinecone.Vector{vector}, p.namespace); err != nil {
			return chunk.Index - 1, fmt.Errorf("ingest: upserting chunk %s: %w", chunk.ID, err)
		}
		chunksUpsertedTotal.Inc()
	}

	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// embedWithRetry embeds a chunk, sleeping RetryDelay between failed
// attempts until success, retry exhaustion, or cancellation.
func (p *Pipeline) embedWithRetry(ctx context.Context, chunk Chunk) ([]float32, error) {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	attempt := 0
	for {
		embedding, err := p.embedder.Embed(ctx, chunk.Text)
		if err == nil {
			return embedding, nil
		}

		attempt++
		if p.MaxRetries > 0 && attempt >= p.MaxRetries {
			return nil, fmt.Errorf("ingest: embedding chunk %s after %d attempts: %w", chunk.ID, attempt, err)
		}

		p.logger.Warn("embedding failed, retrying",
			slog.String("chunk_id", chunk.ID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		embedRetriesTotal.Inc()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("ingest: embedding chunk %s: %w", chunk.ID, ctx.Err())
		case <-time.After(delay):
		}
	}
}
