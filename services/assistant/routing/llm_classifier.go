// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

// =============================================================================
// LLM Fallback Classifier
// =============================================================================

// routerSystemPrompt instructs the model to emit a single strict JSON
// verdict. Deviations from the schema are treated as failures and mapped
// to a neutral fallback result.
const routerSystemPrompt = `You are an intent router for healthcare queries.
Classify the user's message into EXACTLY ONE of:
- Scheduling
- Q&A
(Use "User_Decision" if it is perfectly balanced and cannot be decided, or if neither fits clearly.)

Return ONLY a strict JSON object. All keys must be lowercase.
No extra text before or after the JSON.

Schema (exact keys and types):
{
  "schema_version": "1.0",
  "intent": "scheduling|q&a|user_decision",
  "confidence": 0.0,
  "rationale": "short reason",
  "counts": {"scheduling": 0, "qna": 0},
  "evidence": [],
  "source": "llm",
  "raw_text": "..."
}

Rules:
- Be deterministic and concise. Temperature is 0.
- "confidence" is a number in [0,1]. "rationale" is at most 20 words.
- "counts" holds two non-negative integers. "evidence" is a list of short strings, each at most 3 words.
- If the message clearly asks to book/change/cancel an appointment: intent = "scheduling".
- If the message asks for general info/policy/medication/hours: intent = "q&a".
- If votes tie or unclear: intent = "user_decision".`

// llmVerdict is the wire schema the router prompt requests. Intent is
// a pointer so a missing key (defaulted to user_decision) can be told
// apart from an explicitly empty one, which signals no verdict.
type llmVerdict struct {
	SchemaVersion string     `json:"schema_version"`
	Intent        *string    `json:"intent"`
	Confidence    float64    `json:"confidence"`
	Rationale     string     `json:"rationale"`
	Counts        VoteCounts `json:"counts"`
	Evidence      []string   `json:"evidence"`
	Source        string     `json:"source"`
	RawText       string     `json:"raw_text"`
}

// LLMClassifier escalates ambiguous inputs to a chat model for a
// structured second opinion.
//
// Thread Safety: Safe for concurrent use if the underlying client is.
type LLMClassifier struct {
	client llm.ChatClient
	logger *slog.Logger
}

// NewLLMClassifier builds a classifier over the given chat client.
//
// Inputs:
//
//	client - Chat backend. May be nil; classification then always
//	returns the neutral fallback result.
//	logger - Logger for parse failures. If nil, slog.Default() is used.
func NewLLMClassifier(client llm.ChatClient, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{client: client, logger: logger}
}

// Classify asks the model for a JSON intent verdict.
//
// Description:
//
//	Sends the router system prompt plus the user message at temperature
//	zero, extracts the outermost JSON object from the reply, and
//	normalizes the verdict: intent aliases collapse to the canonical
//	labels, confidence is clamped to [0, 1], and any transport or parse
//	failure yields the neutral user_decision fallback. Never returns an
//	error; routing must not fail because the fallback did.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	text - The user text to classify.
//
// Outputs:
//
//	RoutingResult - Source is either SourceLLM or SourceFallback.
//
// Thread Safety: Safe for concurrent use.
func (c *LLMClassifier) Classify(ctx context.Context, text string) RoutingResult {
	ctx, span := routingTracer.Start(ctx, "routing.LLMClassifier.Classify")
	defer span.End()

	fallback := RoutingResult{
		Intent:     IntentUserDecision,
		Confidence: 0.5,
		Rationale:  "llm unavailable",
		Source:     SourceFallback,
		RawText:    text,
	}

	if c.client == nil {
		span.SetAttributes(attribute.String("result.source", SourceFallback))
		return fallback
	}

	messages := []datatypes.Message{
		{Role: "system", Content: routerSystemPrompt},
		{Role: "user", Content: "message: " + text},
	}
	params := llm.GenerationParams{
		Temperature: llm.Temperature(0),
		MaxTokens:   llm.MaxTokens(300),
	}

	reply, err := c.client.Chat(ctx, messages, params)
	if err != nil {
		c.logger.Warn("llm intent classification failed",
			slog.String("error", err.Error()))
		fallback.Rationale = "llm request failed"
		span.SetAttributes(attribute.String("result.source", SourceFallback))
		return fallback
	}

	verdict, ok := parseVerdict(reply)
	if !ok {
		c.logger.Warn("llm intent verdict was not valid JSON",
			slog.Int("reply_length", len(reply)))
		fallback.Rationale = "invalid llm json"
		span.SetAttributes(attribute.String("result.source", SourceFallback))
		return fallback
	}

	confidence := clamp01(verdict.Confidence)
	evidence := make([]EvidenceItem, 0, len(verdict.Evidence))
	for _, phrase := range verdict.Evidence {
		evidence = append(evidence, EvidenceItem{Index: -1, Keyword: phrase})
	}

	rawIntent := IntentUserDecision
	if verdict.Intent != nil {
		rawIntent = strings.TrimSpace(*verdict.Intent)
	}
	if rawIntent == "" {
		// The verdict carries no intent. Surface that to the router,
		// which then keeps its rule result.
		span.SetAttributes(attribute.String("result.source", SourceLLM))
		return RoutingResult{
			Intent:     "",
			Confidence: confidence,
			Rationale:  verdict.Rationale,
			Counts:     verdict.Counts,
			Evidence:   evidence,
			Source:     SourceLLM,
			RawText:    text,
		}
	}

	intent := normalizeIntent(rawIntent)

	span.SetAttributes(
		attribute.String("result.source", SourceLLM),
		attribute.String("result.intent", intent),
		attribute.Float64("result.confidence", confidence),
	)

	return RoutingResult{
		Intent:     intent,
		Confidence: confidence,
		Rationale:  verdict.Rationale,
		Counts:     verdict.Counts,
		Evidence:   evidence,
		Source:     SourceLLM,
		RawText:    text,
	}
}

// parseVerdict extracts and decodes the outermost JSON object in the
// reply, tolerating surrounding prose or code fences.
func parseVerdict(reply string) (llmVerdict, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return llmVerdict{}, false
	}
	var v llmVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return llmVerdict{}, false
	}
	return v, true
}

// normalizeIntent maps model intent spellings to the canonical labels.
func normalizeIntent(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "&", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	switch s {
	case "scheduling", "schedule":
		return IntentScheduling
	case "qna", "qa", "questionanswering":
		return IntentQnA
	case "userdecision":
		return IntentUserDecision
	default:
		return IntentUserDecision
	}
}

// clamp01 bounds a confidence value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
