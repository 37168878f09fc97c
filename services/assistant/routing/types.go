// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routing implements hybrid intent classification for the
// assistant: a deterministic keyword-voting classifier backed by an LLM
// fallback for low-confidence inputs, and a routing decision layer that
// maps intents to downstream services.
package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// Intent and Source Constants
// =============================================================================

// Intent labels produced by classification.
const (
	// IntentScheduling marks appointment-related requests.
	IntentScheduling = "scheduling"

	// IntentQnA marks informational questions.
	IntentQnA = "qna"

	// IntentUserDecision marks inputs the classifier could not resolve;
	// the frontend asks the user to pick.
	IntentUserDecision = "user_decision"
)

// Classification sources recorded in RoutingResult.Source.
const (
	// SourceRule means the keyword classifier alone produced the result.
	SourceRule = "rule"

	// SourceLLM means the LLM classifier produced the result.
	SourceLLM = "llm"

	// SourceFallback means the LLM path failed and a neutral default
	// was substituted.
	SourceFallback = "fallback"

	// SourceGuard means the input was empty or whitespace-only.
	SourceGuard = "guard"
)

// Downstream service names for RoutingDecision.NextService.
const (
	ServiceAppointment = "appointment_service"
	ServiceQnA         = "qna_service"
	ServiceFrontend    = "frontend"
)

// Action names for RoutingDecision.Action.
const (
	ActionBookAppointment = "book_appointment"
	ActionAnswerQuestion  = "answer_question"
	ActionAskUserDecision = "ask_user_decision"
)

// =============================================================================
// Result Types
// =============================================================================

// EvidenceItem records a single matched keyword.
type EvidenceItem struct {
	// Index is the token position in the tokenized input, or -1 for
	// evidence reported by the LLM classifier.
	Index int `json:"index"`

	// Keyword is the matched token as it appeared in the input.
	Keyword string `json:"keyword"`

	// Category is the vocabulary category the keyword voted for,
	// IntentScheduling or IntentQnA. Empty for LLM evidence.
	Category string `json:"category,omitempty"`
}

// VoteCounts holds the per-category keyword tallies.
type VoteCounts struct {
	Scheduling int `json:"scheduling"`
	QnA        int `json:"qna"`
}

// RoutingResult is the full output of a classification pass.
//
// Description:
//
//	For rule results, Counts.Scheduling + Counts.QnA == len(Evidence)
//	== number of matched tokens; LLM results carry the verdict's
//	counts and evidence verbatim. Confidence is always within [0, 1].
type RoutingResult struct {
	// Intent is one of IntentScheduling, IntentQnA, IntentUserDecision.
	Intent string `json:"intent"`

	// Confidence is the classifier's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Rationale is a short human-readable explanation.
	Rationale string `json:"rationale"`

	// Counts holds the keyword vote tallies, or the LLM verdict's
	// counts.
	Counts VoteCounts `json:"counts"`

	// Evidence lists the matched keywords, or the LLM verdict's
	// evidence phrases.
	Evidence []EvidenceItem `json:"evidence"`

	// Source identifies which stage produced this result.
	Source string `json:"source"`

	// RawText preserves the original input for downstream handlers.
	RawText string `json:"raw_text"`
}

// RoutingDecision is the dispatch-level outcome derived from a
// RoutingResult by applying the dispatch confidence gate.
type RoutingDecision struct {
	// Intent mirrors the underlying result's intent after gating.
	Intent string `json:"intent"`

	// Confidence mirrors the underlying result's confidence.
	Confidence float64 `json:"confidence"`

	// NextService is the service that should handle the input.
	NextService string `json:"next_service"`

	// Action is the operation the next service should perform.
	Action string `json:"action"`

	// Payload carries the data the next service needs.
	Payload map[string]string `json:"payload"`

	// RawResult is the classification that produced this decision.
	RawResult RoutingResult `json:"raw_result"`
}

// =============================================================================
// Metrics and Tracing
// =============================================================================

var routingTracer = otel.Tracer("carely.assistant.routing")

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "routing",
		Name:      "classifications_total",
		Help:      "Total intent classifications by intent and source.",
	}, []string{"intent", "source"})

	llmFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "routing",
		Name:      "llm_fallbacks_total",
		Help:      "Classifications escalated to the LLM fallback.",
	})

	classificationConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carely",
		Subsystem: "routing",
		Name:      "classification_confidence",
		Help:      "Distribution of final classification confidence.",
		Buckets:   prometheus.LinearBuckets(0.0, 0.1, 11),
	})
)
