// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/assistant/config"
)

// =============================================================================
// Hybrid Router
// =============================================================================

// HybridRouter combines the keyword classifier with the LLM fallback
// and applies the dispatch gate.
//
// Description:
//
//	Classification runs in two stages. The rule classifier always runs
//	first; only when its confidence falls below MinRuleConfidence does
//	the LLM classifier get a vote, and its result then replaces the
//	rule result unless the verdict carried no intent. The dispatch
//	gate is applied separately: a final confidence below
//	DispatchConfidence always routes to the frontend regardless of
//	intent.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type HybridRouter struct {
	rules              *RuleClassifier
	llm                *LLMClassifier
	minRuleConfidence  float64
	dispatchConfidence float64
}

// NewHybridRouter assembles a router from its two classifiers.
//
// Inputs:
//
//	cfg - Thresholds and vocabulary. Must not be nil.
//	llmClassifier - Fallback classifier. May be nil; low-confidence
//	inputs then resolve to the neutral fallback result.
//
// Outputs:
//
//	*HybridRouter - Ready-to-use router. Never nil.
func NewHybridRouter(cfg *config.IntentConfig, llmClassifier *LLMClassifier) *HybridRouter {
	if llmClassifier == nil {
		llmClassifier = NewLLMClassifier(nil, nil)
	}
	return &HybridRouter{
		rules:              NewRuleClassifier(cfg.Vocabulary),
		llm:                llmClassifier,
		minRuleConfidence:  cfg.MinRuleConfidence,
		dispatchConfidence: cfg.DispatchConfidence,
	}
}

// Classify resolves the intent of the given text.
//
// Description:
//
//	Empty or whitespace-only input short-circuits to a guard result
//	without touching either classifier. Otherwise the rule classifier
//	runs, and the LLM fallback is consulted only below the rule
//	threshold. Never returns an error.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	text - Raw user text.
//
// Outputs:
//
//	RoutingResult - Final classification with source attribution.
//
// Thread Safety: Safe for concurrent use.
func (r *HybridRouter) Classify(ctx context.Context, text string) RoutingResult {
	ctx, span := routingTracer.Start(ctx, "routing.HybridRouter.Classify")
	defer span.End()

	var result RoutingResult
	if strings.TrimSpace(text) == "" {
		result = RoutingResult{
			Intent:     IntentUserDecision,
			Confidence: 0.5,
			Rationale:  "empty or missing text",
			Source:     SourceGuard,
			RawText:    text,
		}
	} else {
		result = r.rules.Classify(text)
		if result.Confidence < r.minRuleConfidence {
			llmFallbacksTotal.Inc()
			llmResult := r.llm.Classify(ctx, text)
			// A verdict with no intent keeps the rule result.
			if llmResult.Intent != "" {
				result = llmResult
			}
		}
	}

	classificationsTotal.WithLabelValues(result.Intent, result.Source).Inc()
	classificationConfidence.Observe(result.Confidence)
	span.SetAttributes(
		attribute.String("intent", result.Intent),
		attribute.Float64("confidence", result.Confidence),
		attribute.String("source", result.Source),
	)
	return result
}

// RouteDecision classifies the text and maps it to a dispatch target.
//
// Description:
//
//	Applies the dispatch confidence gate on top of Classify: only a
//	scheduling or qna intent at or above DispatchConfidence goes to its
//	service; everything else goes to the frontend to ask the user.
//	Never returns an error.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	text - Raw user text.
//
// Outputs:
//
//	RoutingDecision - Dispatch target, action, and payload.
//
// Thread Safety: Safe for concurrent use.
func (r *HybridRouter) RouteDecision(ctx context.Context, text string) RoutingDecision {
	result := r.Classify(ctx, text)

	nextService := ServiceFrontend
	action := ActionAskUserDecision
	switch {
	case result.Confidence >= r.dispatchConfidence && result.Intent == IntentScheduling:
		nextService = ServiceAppointment
		action = ActionBookAppointment
	case result.Confidence >= r.dispatchConfidence && result.Intent == IntentQnA:
		nextService = ServiceQnA
		action = ActionAnswerQuestion
	}

	return RoutingDecision{
		Intent:      result.Intent,
		Confidence:  result.Confidence,
		NextService: nextService,
		Action:      action,
		Payload: map[string]string{
			"text":     text,
			"language": "English",
		},
		RawResult: result,
	}
}
