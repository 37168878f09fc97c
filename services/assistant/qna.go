// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

// =============================================================================
// Q&A Agent
// =============================================================================

const qnaSystemPrompt = "You are a knowledgeable and responsible medical assistant. " +
	"Provide clear, concise, medically accurate answers. " +
	"Include disclaimers when appropriate and recommend consulting " +
	"healthcare professionals for diagnostic or treatment decisions."

// knowledgeHeader introduces the retrieved context block inside the
// knowledge system message.
const knowledgeHeader = "**Relevant Medical Information from Knowledge Base:**\n"

// ContextProvider supplies retrieved knowledge and its provenance for a
// query. Implemented by rag.Retriever.
type ContextProvider interface {
	ContextWithSources(ctx context.Context, text string) (string, []datatypes.SourceInfo)
}

// QnAAgent answers general medical questions, optionally grounded in
// retrieved knowledge-base passages.
//
// Thread Safety: Safe for concurrent use if the client and retriever
// are.
type QnAAgent struct {
	client    llm.ChatClient
	retriever ContextProvider
}

// NewQnAAgent builds a Q&A agent.
//
// Inputs:
//
//	client - Chat backend. Must not be nil.
//	retriever - Knowledge retriever. May be nil; answers are then
//	ungrounded.
func NewQnAAgent(client llm.ChatClient, retriever ContextProvider) *QnAAgent {
	return &QnAAgent{client: client, retriever: retriever}
}

// Answer generates a response to a general question.
//
// Description:
//
//	Builds the message list as system prompt, retrieved knowledge (as a
//	second system message, when any was found), conversation history,
//	then the user message. Retrieval failures degrade silently; the
//	question is still answered without grounding.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	message - The user's question.
//	history - Prior conversation messages, oldest first.
//
// Outputs:
//
//	string - The assistant's answer.
//	[]datatypes.SourceInfo - Provenance of the grounding passages, in
//	ranking order. Nil when the answer is ungrounded.
//	error - Non-nil on model transport failure.
func (q *QnAAgent) Answer(ctx context.Context, message string, history []datatypes.Message) (string, []datatypes.SourceInfo, error) {
	ctx, span := assistantTracer.Start(ctx, "assistant.QnAAgent.Answer")
	defer span.End()

	messages := make([]datatypes.Message, 0, len(history)+3)
	messages = append(messages, datatypes.Message{Role: "system", Content: qnaSystemPrompt})

	var sources []datatypes.SourceInfo
	if q.retriever != nil {
		knowledge, knowledgeSources := q.retriever.ContextWithSources(ctx, message)
		if knowledge != "" {
			messages = append(messages, datatypes.Message{Role: "system", Content: knowledgeHeader + knowledge})
			sources = knowledgeSources
			span.SetAttributes(attribute.Bool("grounded", true))
		}
	}

	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: message})

	reply, err := q.client.Chat(ctx, messages, llm.GenerationParams{
		Temperature: llm.Temperature(0.7),
		MaxTokens:   llm.MaxTokens(1000),
	})
	if err != nil {
		return "", nil, fmt.Errorf("assistant: qna model request: %w", err)
	}
	return strings.TrimSpace(reply), sources, nil
}
