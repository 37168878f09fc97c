// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pinecone is a minimal client for the Pinecone vector index
// data plane, speaking the REST API directly over net/http in the same
// style as the services/llm clients.
//
// Only the two operations the assistant consumes are implemented:
// namespaced upsert and namespaced nearest-neighbor query. Index
// construction and maintenance are out of scope; the index is assumed
// to exist.
//
// Thread Safety:
//
//	Client is safe for concurrent use.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/carelyhealth/carely/services/llm"
)

// =============================================================================
// Pinecone Wire Types
// =============================================================================

// Vector is a single upsertable record: id, dense values, and metadata.
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is one ranked result of a nearest-neighbor query.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches   []Match `json:"matches"`
	Namespace string  `json:"namespace"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// Client talks to one Pinecone index host.
//
// Description:
//
//	The data-plane host is index-specific (e.g.
//	carely-abc123.svc.aped-4627-b74a.pinecone.io) and is configured via
//	PINECONE_INDEX_HOST. Authentication uses the Api-Key header.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClientWithConfig creates a Client with explicit configuration.
//
// Inputs:
//   - apiKey: The Pinecone API key.
//   - baseURL: The index host URL including scheme, no trailing slash.
//
// Outputs:
//   - *Client: The configured client.
func NewClientWithConfig(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// NewClient creates a Client from environment variables.
//
// Description:
//
//	Reads PINECONE_API_KEY and PINECONE_INDEX_HOST from the environment.
//	The host may be given with or without the https:// scheme.
//
// Outputs:
//   - *Client: The configured client.
//   - error: Non-nil if either variable is missing.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("PINECONE_API_KEY")
	host := os.Getenv("PINECONE_INDEX_HOST")
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: API key is missing (PINECONE_API_KEY)")
	}
	if host == "" {
		return nil, fmt.Errorf("pinecone: index host is missing (PINECONE_INDEX_HOST)")
	}
	if len(host) < 8 || host[:8] != "https://" {
		host = "https://" + host
	}
	slog.Info("Initializing Pinecone client", "host", host)
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    host,
	}, nil
}

// Upsert writes vectors into the index under a namespace.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - vectors: The records to write. Must not be empty.
//   - namespace: The logical partition to write into.
//
// Outputs:
//   - int: Number of vectors the index reports as upserted.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Client) Upsert(ctx context.Context, vectors []Vector, namespace string) (int, error) {
	if len(vectors) == 0 {
		return 0, fmt.Errorf("pinecone: upsert called with no vectors")
	}

	body, err := c.post(ctx, "/vectors/upsert", upsertRequest{
		Vectors:   vectors,
		Namespace: namespace,
	})
	if err != nil {
		return 0, err
	}

	var resp upsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("pinecone: parsing upsert response JSON: %w", err)
	}

	slog.Debug("Pinecone upsert complete",
		slog.Int("requested", len(vectors)),
		slog.Int("upserted", resp.UpsertedCount),
		slog.String("namespace", namespace),
	)
	return resp.UpsertedCount, nil
}

// Query runs a nearest-neighbor search against a namespace.
//
// Description:
//
//	Requests topK matches with metadata included. Matches come back in
//	descending similarity order; the caller must not re-sort them.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - vector: The query embedding.
//   - topK: Maximum number of matches to return.
//   - namespace: The logical partition to search.
//
// Outputs:
//   - []Match: Ranked matches, possibly empty.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("pinecone: query called with empty vector")
	}
	if topK <= 0 {
		topK = 3
	}

	body, err := c.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pinecone: parsing query response JSON: %w", err)
	}

	slog.Debug("Pinecone query complete",
		slog.Int("top_k", topK),
		slog.Int("matches", len(resp.Matches)),
		slog.String("namespace", namespace),
	)
	return resp.Matches, nil
}

// post sends a JSON payload to the index host and returns the raw body.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pinecone: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("pinecone: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pinecone: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pinecone: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinecone: API returned status %d: %s",
			resp.StatusCode, llm.SafeLogString(string(bodyBytes)))
	}

	return bodyBytes, nil
}
