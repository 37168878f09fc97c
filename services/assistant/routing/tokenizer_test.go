// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple sentence",
			text: "Book an appointment",
			want: []string{"book", "an", "appointment"},
		},
		{
			name: "punctuation dropped",
			text: "hours? yes, hours!",
			want: []string{"hours", "yes", "hours"},
		},
		{
			name: "internal apostrophe kept",
			text: "I don't know",
			want: []string{"i", "don't", "know"},
		},
		{
			name: "digits are tokens",
			text: "room 42 at 9am",
			want: []string{"room", "42", "at", "9", "am"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "only punctuation",
			text: "?!... ---",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeToken_CollapsesVariants(t *testing.T) {
	variants := []string{"scheduling", "scheduled", "schedules", "Schedule"}
	base := NormalizeToken("schedule")
	for _, v := range variants {
		if got := NormalizeToken(v); got != base {
			t.Errorf("NormalizeToken(%q) = %q, want %q", v, got, base)
		}
	}
}

func TestNormalizeToken_Empty(t *testing.T) {
	if got := NormalizeToken("   "); got != "" {
		t.Errorf("NormalizeToken(whitespace) = %q, want empty", got)
	}
}

func TestNormalizeToken_VocabularyAndInputAgree(t *testing.T) {
	// The same function normalizes both the vocabulary and user tokens,
	// so every plural vocabulary entry must meet its singular input form.
	pairs := [][2]string{
		{"appointments", "appointment"},
		{"medications", "medication"},
		{"slots", "slot"},
	}
	for _, p := range pairs {
		if NormalizeToken(p[0]) != NormalizeToken(p[1]) {
			t.Errorf("NormalizeToken(%q) != NormalizeToken(%q)", p[0], p[1])
		}
	}
}
