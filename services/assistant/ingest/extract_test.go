// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeLines_RepairsHyphenation(t *testing.T) {
	lines := NormalizeLines("cardio-\nlogy department", 120)
	if len(lines) != 1 || lines[0] != "cardiology department" {
		t.Errorf("lines = %v, want [cardiology department]", lines)
	}
}

func TestNormalizeLines_UnwrapsSoftBreaks(t *testing.T) {
	lines := NormalizeLines("the clinic\nis open\ndaily", 120)
	if len(lines) != 1 || lines[0] != "the clinic is open daily" {
		t.Errorf("lines = %v, want single unwrapped line", lines)
	}
}

func TestNormalizeLines_KeepsBreakAfterSentencePunctuation(t *testing.T) {
	lines := NormalizeLines("First sentence.\nSecond sentence", 120)
	// The newline after the period survives unwrapping but is not a
	// paragraph break, so both sentences stay in one paragraph.
	joined := strings.Join(lines, "|")
	if !strings.Contains(joined, "First sentence.") || !strings.Contains(joined, "Second sentence") {
		t.Errorf("lines = %v", lines)
	}
}

func TestNormalizeLines_ParagraphsSeparatedByBlank(t *testing.T) {
	lines := NormalizeLines("first paragraph\n\nsecond paragraph", 120)
	want := []string{"first paragraph", "", "second paragraph"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestNormalizeLines_NoTrailingBlank(t *testing.T) {
	lines := NormalizeLines("one\n\ntwo\n\n\n\n", 120)
	if len(lines) == 0 || lines[len(lines)-1] == "" {
		t.Errorf("lines = %v, want no trailing blank", lines)
	}
}

func TestNormalizeLines_CollapsesSpaceRuns(t *testing.T) {
	lines := NormalizeLines("too    many\t\tspaces", 120)
	if len(lines) != 1 || lines[0] != "too many spaces" {
		t.Errorf("lines = %v, want [too many spaces]", lines)
	}
}

func TestNormalizeLines_WrapsAtWidth(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	lines := NormalizeLines(strings.Join(words, " "), 20)

	for _, line := range lines {
		if line == "" {
			continue
		}
		if len(line) > 20 {
			t.Errorf("line %q exceeds wrap width", line)
		}
	}
}

func TestNormalizeLines_NeverBreaksWords(t *testing.T) {
	long := "supercalifragilisticexpialidocious"
	lines := NormalizeLines("short "+long+" short", 10)

	found := false
	for _, line := range lines {
		if line == long {
			found = true
		}
	}
	if !found {
		t.Errorf("long word should stay unbroken on its own line, lines = %v", lines)
	}
}

func TestNormalizeLines_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n\n"} {
		if lines := NormalizeLines(raw, 120); len(lines) != 0 {
			t.Errorf("NormalizeLines(%q) = %v, want empty", raw, lines)
		}
	}
}
