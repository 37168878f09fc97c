// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest builds the knowledge base: it extracts text from PDF
// documents, normalizes it into fixed-width lines, slices the lines into
// overlapping chunks, and embeds and upserts each chunk into the vector
// index.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// =============================================================================
// PDF Extraction and Text Normalization
// =============================================================================

// WrapWidth is the column width lines are wrapped to before chunking.
// Chunk boundaries are line-based, so a stable width keeps chunk sizes
// comparable across documents.
const WrapWidth = 120

var (
	hyphenBreakPattern = regexp.MustCompile(`(\w)-\n(\w)`)
	spaceRunPattern    = regexp.MustCompile(`[ \t]+`)
	newlineRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// ExtractText reads a PDF and returns its raw page text joined with
// newlines.
//
// Inputs:
//
//	path - Filesystem path to the PDF.
//
// Outputs:
//
//	string - Concatenated page text.
//	error - Non-nil if the file cannot be opened or a page cannot be
//	read.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingest: opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("ingest: reading pdf page %d of %s: %w", i, path, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// NormalizeLines cleans raw extracted text into wrapped lines.
//
// Description:
//
//	Repairs hyphenation across line breaks, unwraps soft line breaks
//	that do not follow sentence punctuation, collapses space runs, and
//	splits the result into paragraphs on blank lines. Each paragraph is
//	word-wrapped to the given width without breaking words or hyphens,
//	and paragraphs are flattened into one line list separated by single
//	blank lines, with no trailing blank.
//
// Inputs:
//
//	raw - Raw text from ExtractText.
//	width - Wrap column. Non-positive selects WrapWidth.
//
// Outputs:
//
//	[]string - Cleaned, wrapped lines. Empty for blank input.
//
// Thread Safety: Safe for concurrent use.
func NormalizeLines(raw string, width int) []string {
	if width <= 0 {
		width = WrapWidth
	}

	text := hyphenBreakPattern.ReplaceAllString(raw, "$1$2")
	text = unwrapSoftBreaks(text)
	text = strings.TrimSpace(spaceRunPattern.ReplaceAllString(text, " "))
	text = newlineRunPattern.ReplaceAllString(text, "\n\n")

	var lines []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines = append(lines, wrapParagraph(para, width)...)
		lines = append(lines, "")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// unwrapSoftBreaks replaces a single newline with a space unless the
// preceding character ends a sentence or the newline starts a blank
// line. Paragraph breaks (double newlines) are preserved.
func unwrapSoftBreaks(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '\n' {
			b.WriteRune(c)
			continue
		}
		nextIsNewline := i+1 < len(runes) && runes[i+1] == '\n'
		prevEndsSentence := i > 0 && strings.ContainsRune(".!?;:", runes[i-1])
		prevIsNewline := i > 0 && runes[i-1] == '\n'
		if nextIsNewline || prevIsNewline || prevEndsSentence {
			b.WriteRune(c)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// wrapParagraph greedily wraps a single-line paragraph at the given
// width. Words longer than the width go on their own line unbroken.
func wrapParagraph(para string, width int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len(current)+1+len(w) <= width {
			current += " " + w
		} else {
			lines = append(lines, current)
			current = w
		}
	}
	return append(lines, current)
}

// ExtractLines extracts a PDF and normalizes it into wrapped lines,
// ready for chunking.
func ExtractLines(path string) ([]string, error) {
	raw, err := ExtractText(path)
	if err != nil {
		return nil, err
	}
	return NormalizeLines(raw, WrapWidth), nil
}
