// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelyhealth/carely/services/pinecone"
)

type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

type mockUpserter struct {
	upsertFunc func(ctx context.Context, vectors []pinecone.Vector, namespace string) (int, error)
}

func (m *mockUpserter) Upsert(ctx context.Context, vectors []pinecone.Vector, namespace string) (int, error) {
	return m.upsertFunc(ctx, vectors, namespace)
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/Services Guide.pdf", "services_guide"},
		{"patient-handbook.pdf", "patient_handbook"},
		{"simple.pdf", "simple"},
	}
	for _, tt := range tests {
		if got := DocumentID(tt.path); got != tt.want {
			t.Errorf("DocumentID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPipeline_EmbedWithRetry_RecoversAfterFailure(t *testing.T) {
	attempts := 0
	embedder := &mockEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("rate limited")
			}
			return []float32{1, 2, 3}, nil
		},
	}
	p := NewPipeline(embedder, &mockUpserter{}, "", 0, -1, nil)
	p.RetryDelay = time.Millisecond

	embedding, err := p.embedWithRetry(context.Background(), Chunk{ID: "doc_1", Text: "x"})
	if err != nil {
		t.Fatalf("embedWithRetry() error = %v", err)
	}
	if len(embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(embedding))
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPipeline_EmbedWithRetry_MaxRetriesExhausted(t *testing.T) {
	attempts := 0
	embedder := &mockEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			attempts++
			return nil, errors.New("permanent failure")
		},
	}
	p := NewPipeline(embedder, &mockUpserter{}, "", 0, -1, nil)
	p.RetryDelay = time.Millisecond
	p.MaxRetries = 3

	_, err := p.embedWithRetry(context.Background(), Chunk{ID: "doc_1", Text: "x"})
	if err == nil {
		t.Fatal("embedWithRetry() should fail after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPipeline_EmbedWithRetry_ContextCancellation(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("always failing")
		},
	}
	p := NewPipeline(embedder, &mockUpserter{}, "", 0, -1, nil)
	p.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.embedWithRetry(ctx, Chunk{ID: "doc_1", Text: "x"})
	if err == nil {
		t.Fatal("embedWithRetry() should abort on cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPipeline_UpsertMetadata(t *testing.T) {
	var got []pinecone.Vector
	var gotNamespace string
	upserter := &mockUpserter{
		upsertFunc: func(_ context.Context, vectors []pinecone.Vector, namespace string) (int, error) {
			got = append(got, vectors...)
			gotNamespace = namespace
			return len(vectors), nil
		},
	}
	embedder := &mockEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			return []float32{0.5}, nil
		},
	}
	p := NewPipeline(embedder, upserter, "", 0, -1, nil)

	count, err := p.IngestLines(context.Background(), "guide", "guide.pdf", []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("IngestLines() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if gotNamespace != "carely" {
		t.Errorf("namespace = %q, want carely", gotNamespace)
	}
	if len(got) != 1 {
		t.Fatalf("got %d vectors, want 1", len(got))
	}
	if got[0].ID != "guide_1" {
		t.Errorf("vector ID = %q, want guide_1", got[0].ID)
	}
	if got[0].Metadata["text"] != "alphabeta" {
		t.Errorf("metadata text = %q, want alphabeta", got[0].Metadata["text"])
	}
	if got[0].Metadata["source_file"] != "guide.pdf" {
		t.Errorf("metadata source_file = %q", got[0].Metadata["source_file"])
	}
	if got[0].Metadata["chunk_index"] != "1" {
		t.Errorf("metadata chunk_index = %q, want 1", got[0].Metadata["chunk_index"])
	}
}

func TestPipeline_IngestLines_UpsertFailureReportsProgress(t *testing.T) {
	calls := 0
	upserter := &mockUpserter{
		upsertFunc: func(context.Context, []pinecone.Vector, string) (int, error) {
			calls++
			if calls == 2 {
				return 0, errors.New("index unavailable")
			}
			return 1, nil
		},
	}
	embedder := &mockEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			return []float32{0.5}, nil
		},
	}
	p := NewPipeline(embedder, upserter, "", 9, 3, nil)

	count, err := p.IngestLines(context.Background(), "doc", "doc.pdf", numberedLines(20))
	if err == nil {
		t.Fatal("IngestLines() should surface the upsert failure")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 chunk upserted before the failure", count)
	}
}
