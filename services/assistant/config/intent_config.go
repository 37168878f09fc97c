// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the assistant's routing configuration: the two
// weighted intent vocabularies and the confidence thresholds used by the
// hybrid router.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Intent Rules
// =============================================================================

//go:embed intent_rules.yaml
var defaultIntentRulesYAML []byte

// =============================================================================
// OTel Tracer
// =============================================================================

var intentConfigTracer = otel.Tracer("carely.assistant.config")

// =============================================================================
// Intent Configuration Types
// =============================================================================

// MaxYAMLFileSize bounds parsed YAML input. Vocabulary files are tiny;
// anything above this is a misconfigured path, not a vocabulary.
const MaxYAMLFileSize = 1 << 20

const (
	// DefaultMinRuleConfidence is the keyword-classifier confidence below
	// which the router escalates to the LLM fallback.
	DefaultMinRuleConfidence = 0.6

	// DefaultDispatchConfidence is the minimum final confidence required
	// to dispatch to a concrete handler instead of asking the user.
	DefaultDispatchConfidence = 0.6
)

// IntentVocabulary holds the per-category keyword lists.
//
// Description:
//
//	The two lists are disjoint by curation intent, not by enforcement:
//	a word appearing in both categories votes for both, which the voting
//	classifier resolves by margin.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentVocabulary struct {
	// Scheduling lists words and phrases voting for the scheduling intent.
	Scheduling []string `yaml:"scheduling"`

	// QnA lists words and phrases voting for the informational intent.
	QnA []string `yaml:"qna"`
}

// IntentConfig is the full routing configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentConfig struct {
	// MinRuleConfidence is the rule-confidence threshold that gates the
	// LLM fallback. Below it, the router invokes the LLM classifier.
	MinRuleConfidence float64 `yaml:"min_rule_confidence"`

	// DispatchConfidence is the second-stage threshold that gates
	// dispatching to a concrete handler.
	DispatchConfidence float64 `yaml:"dispatch_confidence"`

	// Vocabulary holds the two keyword lists.
	Vocabulary IntentVocabulary `yaml:"vocabulary"`
}

// =============================================================================
// Singleton Intent Config
// =============================================================================

var (
	intentConfigMu      sync.RWMutex
	cachedIntentConfig  *IntentConfig
	intentConfigLoadErr error
)

// GetIntentConfig returns the cached intent configuration.
//
// Description:
//
//	Loads the embedded intent rules on first call and caches for
//	subsequent calls.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*IntentConfig - The loaded configuration. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetIntentConfig(ctx context.Context) (*IntentConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetIntentConfig: ctx must not be nil")
	}

	intentConfigMu.RLock()
	if cachedIntentConfig != nil || intentConfigLoadErr != nil {
		cfg, err := cachedIntentConfig, intentConfigLoadErr
		intentConfigMu.RUnlock()
		return cfg, err
	}
	intentConfigMu.RUnlock()

	intentConfigMu.Lock()
	defer intentConfigMu.Unlock()

	if cachedIntentConfig == nil && intentConfigLoadErr == nil {
		cachedIntentConfig, intentConfigLoadErr = LoadIntentConfig(ctx, defaultIntentRulesYAML)
	}
	return cachedIntentConfig, intentConfigLoadErr
}

// ResetIntentConfig clears the cached config so tests can reload.
//
// Thread Safety: Safe for concurrent use.
func ResetIntentConfig() {
	intentConfigMu.Lock()
	defer intentConfigMu.Unlock()
	cachedIntentConfig = nil
	intentConfigLoadErr = nil
}

// LoadIntentConfig loads and validates an IntentConfig from YAML bytes.
//
// Description:
//
//	Parses the YAML, applies defaults for missing thresholds, and
//	validates that both vocabulary categories are non-empty and the
//	thresholds fall in (0, 1].
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*IntentConfig - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func LoadIntentConfig(ctx context.Context, data []byte) (*IntentConfig, error) {
	_, span := intentConfigTracer.Start(ctx, "config.LoadIntentConfig")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadIntentConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadIntentConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg IntentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadIntentConfig: parsing YAML: %w", err)
	}

	if cfg.MinRuleConfidence <= 0 {
		cfg.MinRuleConfidence = DefaultMinRuleConfidence
	}
	if cfg.DispatchConfidence <= 0 {
		cfg.DispatchConfidence = DefaultDispatchConfidence
	}

	if err := validateIntentConfig(&cfg); err != nil {
		return nil, fmt.Errorf("LoadIntentConfig: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("scheduling_words", len(cfg.Vocabulary.Scheduling)),
		attribute.Int("qna_words", len(cfg.Vocabulary.QnA)),
		attribute.Float64("min_rule_confidence", cfg.MinRuleConfidence),
		attribute.Float64("dispatch_confidence", cfg.DispatchConfidence),
	)

	slog.Info("intent config loaded",
		slog.Int("scheduling_words", len(cfg.Vocabulary.Scheduling)),
		slog.Int("qna_words", len(cfg.Vocabulary.QnA)),
		slog.Float64("min_rule_confidence", cfg.MinRuleConfidence),
	)

	return &cfg, nil
}

// validateIntentConfig checks vocabulary and threshold consistency.
func validateIntentConfig(cfg *IntentConfig) error {
	if len(cfg.Vocabulary.Scheduling) == 0 {
		return fmt.Errorf("vocabulary.scheduling must not be empty")
	}
	if len(cfg.Vocabulary.QnA) == 0 {
		return fmt.Errorf("vocabulary.qna must not be empty")
	}
	if cfg.MinRuleConfidence > 1 {
		return fmt.Errorf("min_rule_confidence must be in (0, 1], got %v", cfg.MinRuleConfidence)
	}
	if cfg.DispatchConfidence > 1 {
		return fmt.Errorf("dispatch_confidence must be in (0, 1], got %v", cfg.DispatchConfidence)
	}
	for i, w := range cfg.Vocabulary.Scheduling {
		if w == "" {
			return fmt.Errorf("vocabulary.scheduling[%d]: word must not be empty", i)
		}
	}
	for i, w := range cfg.Vocabulary.QnA {
		if w == "" {
			return fmt.Errorf("vocabulary.qna[%d]: word must not be empty", i)
		}
	}
	return nil
}
