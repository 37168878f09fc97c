// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

// =============================================================================
// Tokenization and Normalization
// =============================================================================

// wordPattern matches alphabetic words with optional internal apostrophes
// ("don't" stays one token) and runs of digits. Everything else is dropped.
var wordPattern = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?|[0-9]+`)

// Tokenize splits user text into lowercase word and number tokens.
//
// Description:
//
//	Extracts alphabetic words (keeping internal apostrophes) and digit
//	runs, lowercased, in order of appearance. Punctuation and all other
//	characters are discarded.
//
// Inputs:
//
//	text - Raw user text. May be empty.
//
// Outputs:
//
//	[]string - Tokens in order of appearance. Empty slice for text with
//	no matchable content.
//
// Thread Safety: Safe for concurrent use.
func Tokenize(text string) []string {
	matches := wordPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, strings.ToLower(m))
	}
	return tokens
}

// NormalizeToken reduces a token to its stemmed, lowercase form.
//
// Description:
//
//	Lowercases and stems the token with the Porter-family English
//	stemmer so that surface variants ("scheduling", "schedules",
//	"scheduled") collapse to one vocabulary key. Both classifier
//	vocabulary entries and user tokens pass through this single
//	function, so the two sides can never diverge.
//
// Inputs:
//
//	token - A single token. May be empty.
//
// Outputs:
//
//	string - The normalized form. Tokens the stemmer cannot process
//	are returned lowercased as-is.
//
// Thread Safety: Safe for concurrent use.
func NormalizeToken(token string) string {
	lowered := strings.ToLower(strings.TrimSpace(token))
	if lowered == "" {
		return ""
	}
	stemmed := english.Stem(lowered, false)
	if stemmed == "" {
		return lowered
	}
	return stemmed
}
