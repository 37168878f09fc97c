// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

// mockChatClient lets each test script the chat reply.
type mockChatClient struct {
	chatFunc func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error)
}

func (m *mockChatClient) Chat(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
	return m.chatFunc(ctx, messages, params)
}

func TestLLMClassifier_ValidVerdict(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(_ context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
			if messages[0].Role != "system" {
				t.Errorf("first message role = %q, want system", messages[0].Role)
			}
			if params.Temperature == nil || *params.Temperature != 0 {
				t.Error("temperature should be pinned to 0")
			}
			return `{"schema_version":"1.0","intent":"scheduling","confidence":0.9,"rationale":"asks to book","source":"llm","raw_text":"x"}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "please book me in")
	if result.Intent != IntentScheduling {
		t.Errorf("Intent = %q, want %q", result.Intent, IntentScheduling)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", result.Confidence)
	}
	if result.Source != SourceLLM {
		t.Errorf("Source = %q, want %q", result.Source, SourceLLM)
	}
	if result.RawText != "please book me in" {
		t.Errorf("RawText = %q, want original input", result.RawText)
	}
}

func TestLLMClassifier_QnAAlias(t *testing.T) {
	aliases := []string{"q&a", "Q&A", "qna", "q_a", "Q-A"}
	for _, alias := range aliases {
		client := &mockChatClient{
			chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
				return `{"intent":"` + alias + `","confidence":0.8}`, nil
			},
		}
		c := NewLLMClassifier(client, nil)
		result := c.Classify(context.Background(), "what are your hours")
		if result.Intent != IntentQnA {
			t.Errorf("alias %q: Intent = %q, want %q", alias, result.Intent, IntentQnA)
		}
	}
}

func TestLLMClassifier_UnknownIntentIsNeutral(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
			return `{"intent":"billing","confidence":0.9}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "charge my card")
	if result.Intent != IntentUserDecision {
		t.Errorf("Intent = %q, want %q", result.Intent, IntentUserDecision)
	}
}

func TestLLMClassifier_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"intent":"scheduling","confidence":1.7}`, 1.0},
		{`{"intent":"scheduling","confidence":-0.2}`, 0.0},
	}
	for _, tt := range tests {
		client := &mockChatClient{
			chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
				return tt.raw, nil
			},
		}
		c := NewLLMClassifier(client, nil)
		result := c.Classify(context.Background(), "book")
		if result.Confidence != tt.want {
			t.Errorf("Classify(%q): Confidence = %v, want %v", tt.raw, result.Confidence, tt.want)
		}
	}
}

func TestLLMClassifier_JSONWithSurroundingProse(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
			return "Here is my verdict:\n```json\n{\"intent\":\"q&a\",\"confidence\":0.75}\n```\nDone.", nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "what is the copay")
	if result.Intent != IntentQnA || result.Confidence != 0.75 {
		t.Errorf("result = %+v, want qna/0.75", result)
	}
}

func TestLLMClassifier_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		client llm.ChatClient
	}{
		{
			name:   "nil client",
			client: nil,
		},
		{
			name: "transport error",
			client: &mockChatClient{
				chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
					return "", errors.New("upstream timeout")
				},
			},
		},
		{
			name: "no json in reply",
			client: &mockChatClient{
				chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
					return "I cannot classify this message.", nil
				},
			},
		},
		{
			name: "malformed json",
			client: &mockChatClient{
				chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
					return `{"intent": "scheduling", "confidence": }`, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLLMClassifier(tt.client, nil)
			result := c.Classify(context.Background(), "some input")
			if result.Intent != IntentUserDecision {
				t.Errorf("Intent = %q, want %q", result.Intent, IntentUserDecision)
			}
			if result.Confidence != 0.5 {
				t.Errorf("Confidence = %v, want 0.5", result.Confidence)
			}
			if result.Source != SourceFallback {
				t.Errorf("Source = %q, want %q", result.Source, SourceFallback)
			}
		})
	}
}

func TestLLMClassifier_CarriesCountsAndEvidence(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(_ context.Context, messages []datatypes.Message, _ llm.GenerationParams) (string, error) {
			if !strings.Contains(messages[0].Content, `"counts"`) || !strings.Contains(messages[0].Content, `"evidence"`) {
				t.Error("system prompt should request counts and evidence keys")
			}
			return `{"intent":"scheduling","confidence":0.9,"counts":{"scheduling":2,"qna":0},"evidence":["book appointment","see cardiologist"]}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "book me in with the cardiologist")
	if result.Counts.Scheduling != 2 || result.Counts.QnA != 0 {
		t.Errorf("Counts = %+v, want scheduling=2 qna=0", result.Counts)
	}
	if len(result.Evidence) != 2 {
		t.Fatalf("Evidence = %+v, want two items", result.Evidence)
	}
	if result.Evidence[0].Index != -1 || result.Evidence[0].Keyword != "book appointment" {
		t.Errorf("Evidence[0] = %+v, want index -1 keyword %q", result.Evidence[0], "book appointment")
	}
}

func TestLLMClassifier_MissingVerdictKeysDefaultEmpty(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
			return `{"intent":"scheduling","confidence":0.9}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "book")
	if result.Counts.Scheduling != 0 || result.Counts.QnA != 0 {
		t.Errorf("Counts = %+v, want zero values", result.Counts)
	}
	if len(result.Evidence) != 0 {
		t.Errorf("Evidence = %+v, want empty", result.Evidence)
	}
}

func TestLLMClassifier_EmptyIntentSignalsNoVerdict(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
			return `{"intent":"","confidence":0.9,"rationale":"unsure"}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "hmm")
	if result.Intent != "" {
		t.Errorf("Intent = %q, want empty", result.Intent)
	}
	if result.Source != SourceLLM {
		t.Errorf("Source = %q, want %q", result.Source, SourceLLM)
	}
}

func TestLLMClassifier_MissingIntentKeyIsNeutral(t *testing.T) {
	client := &mockChatClient{
		chatFunc: func(context.Context, []datatypes.Message, llm.GenerationParams) (string, error) {
			return `{"confidence":0.9}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)

	result := c.Classify(context.Background(), "hmm")
	if result.Intent != IntentUserDecision {
		t.Errorf("Intent = %q, want %q", result.Intent, IntentUserDecision)
	}
}

func TestLLMClassifier_UserMessageCarriesText(t *testing.T) {
	var seen string
	client := &mockChatClient{
		chatFunc: func(_ context.Context, messages []datatypes.Message, _ llm.GenerationParams) (string, error) {
			seen = messages[len(messages)-1].Content
			return `{"intent":"scheduling","confidence":0.8}`, nil
		},
	}
	c := NewLLMClassifier(client, nil)
	c.Classify(context.Background(), "see the cardiologist tomorrow")

	if !strings.Contains(seen, "see the cardiologist tomorrow") {
		t.Errorf("user message %q does not carry the input text", seen)
	}
}
