// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"strings"
	"testing"
)

func passage(text string) Passage {
	return Passage{Text: text}
}

func TestAssembleContext_WrapsInDelimiters(t *testing.T) {
	got := AssembleContext([]Passage{passage("alpha"), passage("beta")}, 100)
	want := "########alphabeta########"
	if got != want {
		t.Errorf("AssembleContext = %q, want %q", got, want)
	}
}

func TestAssembleContext_EmptyInput(t *testing.T) {
	if got := AssembleContext(nil, 100); got != "" {
		t.Errorf("AssembleContext(nil) = %q, want empty", got)
	}
	if got := AssembleContext([]Passage{}, 100); got != "" {
		t.Errorf("AssembleContext(empty) = %q, want empty", got)
	}
}

func TestAssembleContext_StopsAtFirstOverBudgetPassage(t *testing.T) {
	long := strings.Repeat("x", 90)
	got := AssembleContext([]Passage{passage(long), passage("tiny")}, 50)
	if got != "" {
		t.Errorf("AssembleContext = %q, want empty: packing stops at the first passage that does not fit", got)
	}

	got = AssembleContext([]Passage{passage("tiny"), passage(long), passage("more")}, 50)
	want := ContextDelimiter + "tiny" + ContextDelimiter
	if got != want {
		t.Errorf("AssembleContext = %q, want %q: later passages are not considered after the cutoff", got, want)
	}
}

func TestAssembleContext_NeverTruncatesPassages(t *testing.T) {
	passages := []Passage{
		passage(strings.Repeat("a", 30)),
		passage(strings.Repeat("b", 30)),
		passage(strings.Repeat("c", 30)),
	}
	got := AssembleContext(passages, 70)

	inner := strings.TrimPrefix(strings.TrimSuffix(got, ContextDelimiter), ContextDelimiter)
	if strings.Contains(inner, "c") {
		t.Errorf("third passage should be skipped whole, got %q", inner)
	}
	if len(inner) != 60 {
		t.Errorf("inner length = %d, want 60 (two whole passages)", len(inner))
	}
}

func TestAssembleContext_BudgetNeverExceeded(t *testing.T) {
	passages := []Passage{
		passage(strings.Repeat("a", 40)),
		passage(strings.Repeat("b", 40)),
		passage(strings.Repeat("c", 40)),
		passage(strings.Repeat("d", 5)),
	}
	for _, limit := range []int{10, 45, 85, 90, 1000} {
		got := AssembleContext(passages, limit)
		inner := strings.TrimPrefix(strings.TrimSuffix(got, ContextDelimiter), ContextDelimiter)
		if len(inner) >= limit {
			t.Errorf("limit %d: packed length %d should stay under the limit", limit, len(inner))
		}
	}
}

func TestAssembleContext_NothingFits(t *testing.T) {
	got := AssembleContext([]Passage{passage(strings.Repeat("x", 200))}, 50)
	if got != "" {
		t.Errorf("AssembleContext = %q, want empty when nothing fits", got)
	}
}

func TestAssembleContext_DefaultLimit(t *testing.T) {
	long := strings.Repeat("x", DefaultContextLimit-1)
	got := AssembleContext([]Passage{passage(long)}, 0)
	if got == "" {
		t.Errorf("passage under the default limit should fit, got empty")
	}
	over := strings.Repeat("x", DefaultContextLimit)
	if got := AssembleContext([]Passage{passage(over)}, 0); got != "" {
		t.Errorf("passage at the default limit should be skipped")
	}
}
