// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for the language-generation and embedding
// services the assistant depends on. The clients speak the provider REST
// APIs directly over net/http without third-party SDKs.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"

	"github.com/carelyhealth/carely/services/datatypes"
)

// GenerationParams holds provider-agnostic generation parameters.
//
// Description:
//
//	Pointer fields are omitted from the request when nil, letting the
//	provider apply its own defaults. The router pins Temperature to 0 for
//	deterministic classification; the conversational handlers use 0.7.
type GenerationParams struct {
	// Temperature controls randomness (0.0-1.0). Nil omits the field.
	Temperature *float32

	// MaxTokens limits the response length. Nil omits the field.
	MaxTokens *int

	// TopP is the nucleus sampling parameter. Nil omits the field.
	TopP *float32

	// Stop lists stop sequences.
	Stop []string

	// ModelOverride selects a model for this request only.
	ModelOverride string
}

// ChatClient is the minimal generation interface consumed by the router
// and the chat handlers.
//
// Description:
//
//	The hybrid router and the appointment/QnA handlers only need simple
//	chat (no tool calls, no streaming). Keeping the interface minimal makes
//	test doubles trivial.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - params: Generation parameters.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// EmbeddingClient produces dense vectors for retrieval and ingestion.
//
// Thread Safety: Implementations must be safe for concurrent use.
type EmbeddingClient interface {
	// Embed returns a fixed-dimension embedding vector for the input text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Temperature returns a pointer to v, for building GenerationParams inline.
func Temperature(v float32) *float32 { return &v }

// MaxTokens returns a pointer to v, for building GenerationParams inline.
func MaxTokens(v int) *int { return &v }
