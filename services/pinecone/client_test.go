// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Upsert_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("path = %q, want /vectors/upsert", r.URL.Path)
		}
		if got := r.Header.Get("Api-Key"); got != "test-key" {
			t.Errorf("Api-Key = %q, want test-key", got)
		}

		var req upsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Namespace != "carely" {
			t.Errorf("namespace = %q, want carely", req.Namespace)
		}
		if len(req.Vectors) != 2 {
			t.Errorf("vectors = %d, want 2", len(req.Vectors))
		}
		json.NewEncoder(w).Encode(upsertResponse{UpsertedCount: 2})
	}))
	defer server.Close()

	client := NewClientWithConfig("test-key", server.URL)
	count, err := client.Upsert(context.Background(), []Vector{
		{ID: "doc_1", Values: []float32{0.1, 0.2}, Metadata: map[string]string{"text": "a"}},
		{ID: "doc_2", Values: []float32{0.3, 0.4}, Metadata: map[string]string{"text": "b"}},
	}, "carely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("upserted count = %d, want 2", count)
	}
}

func TestClient_Upsert_EmptyVectors(t *testing.T) {
	client := NewClientWithConfig("test-key", "http://unused")
	if _, err := client.Upsert(context.Background(), nil, "carely"); err == nil {
		t.Fatal("expected error for empty vector batch")
	}
}

func TestClient_Query_PreservesRanking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %q, want /query", r.URL.Path)
		}
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.IncludeMetadata {
			t.Error("query should request metadata")
		}
		if req.TopK != 3 {
			t.Errorf("topK = %d, want 3", req.TopK)
		}
		json.NewEncoder(w).Encode(queryResponse{
			Matches: []Match{
				{ID: "nlp_3", Score: 0.92, Metadata: map[string]string{"text": "cardiology"}},
				{ID: "nlp_7", Score: 0.85, Metadata: map[string]string{"text": "scheduling"}},
				{ID: "nlp_1", Score: 0.61, Metadata: map[string]string{"text": "billing"}},
			},
		})
	}))
	defer server.Close()

	client := NewClientWithConfig("test-key", server.URL)
	matches, err := client.Query(context.Background(), []float32{0.5, 0.5}, 3, "carely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	// Ranking from the index must be preserved as-is.
	if matches[0].ID != "nlp_3" || matches[2].ID != "nlp_1" {
		t.Errorf("ranking not preserved: %+v", matches)
	}
}

func TestClient_Query_DefaultTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TopK != 3 {
			t.Errorf("topK = %d, want default 3", req.TopK)
		}
		json.NewEncoder(w).Encode(queryResponse{})
	}))
	defer server.Close()

	client := NewClientWithConfig("test-key", server.URL)
	if _, err := client.Query(context.Background(), []float32{1}, 0, "carely"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Query_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("index unavailable"))
	}))
	defer server.Close()

	client := NewClientWithConfig("test-key", server.URL)
	_, err := client.Query(context.Background(), []float32{1}, 3, "carely")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should mention status 503, got: %s", err)
	}
}

func TestNewClient_MissingEnv(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("PINECONE_INDEX_HOST", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error for missing env configuration")
	}

	t.Setenv("PINECONE_API_KEY", "pcsk_test")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error for missing index host")
	}
}

func TestNewClient_SchemePrefix(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "pcsk_test")
	t.Setenv("PINECONE_INDEX_HOST", "carely-abc.svc.pinecone.io")
	client, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.baseURL != "https://carely-abc.svc.pinecone.io" {
		t.Errorf("baseURL = %q, want https prefix added", client.baseURL)
	}
}
