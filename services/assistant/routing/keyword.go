// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"fmt"
	"strings"

	"github.com/carelyhealth/carely/services/assistant/config"
)

// =============================================================================
// Keyword Voting Classifier
// =============================================================================

// RuleClassifier classifies input by counting vocabulary keyword votes.
//
// Description:
//
//	Each vocabulary word is normalized once at construction; the raw
//	word set is retained as a secondary guard against stemming
//	collisions. At classification time each input token is normalized
//	with the same function and votes for at most one category, with
//	scheduling checked first. Confidence grows with the vote margin:
//	unanimous votes give 1.0, an even split gives 0.5.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type RuleClassifier struct {
	schedulingStems map[string]struct{}
	schedulingWords map[string]struct{}
	qnaStems        map[string]struct{}
	qnaWords        map[string]struct{}
}

// NewRuleClassifier builds a classifier from the vocabulary config.
//
// Inputs:
//
//	vocab - The two keyword lists. Entries are single words; each is
//	normalized with NormalizeToken so variants collapse to the same
//	stem as input tokens do.
//
// Outputs:
//
//	*RuleClassifier - Ready-to-use classifier. Never nil.
func NewRuleClassifier(vocab config.IntentVocabulary) *RuleClassifier {
	c := &RuleClassifier{
		schedulingStems: make(map[string]struct{}, len(vocab.Scheduling)),
		schedulingWords: make(map[string]struct{}, len(vocab.Scheduling)),
		qnaStems:        make(map[string]struct{}, len(vocab.QnA)),
		qnaWords:        make(map[string]struct{}, len(vocab.QnA)),
	}
	for _, w := range vocab.Scheduling {
		word := strings.ToLower(strings.TrimSpace(w))
		if word == "" {
			continue
		}
		c.schedulingWords[word] = struct{}{}
		if n := NormalizeToken(word); n != "" {
			c.schedulingStems[n] = struct{}{}
		}
	}
	for _, w := range vocab.QnA {
		word := strings.ToLower(strings.TrimSpace(w))
		if word == "" {
			continue
		}
		c.qnaWords[word] = struct{}{}
		if n := NormalizeToken(word); n != "" {
			c.qnaStems[n] = struct{}{}
		}
	}
	return c
}

// matches reports membership of the token in a category by stem or by
// raw word.
func matches(tok, stem string, stems, words map[string]struct{}) bool {
	if _, ok := stems[stem]; ok {
		return true
	}
	_, ok := words[tok]
	return ok
}

// Classify runs the keyword vote over the input text.
//
// Description:
//
//	Pure and deterministic. Tokenizes, normalizes each token, and
//	tallies at most one vote per token, scheduling before qna. The
//	result always satisfies Counts.Scheduling + Counts.QnA ==
//	len(Evidence) == number of matched tokens, and Confidence in
//	[0, 1].
//
// Inputs:
//
//	text - Raw user text. Callers handle the empty case; an empty
//	string here simply yields zero votes.
//
// Outputs:
//
//	RoutingResult - Intent, confidence, counts, and per-match evidence.
//
// Thread Safety: Safe for concurrent use.
func (c *RuleClassifier) Classify(text string) RoutingResult {
	tokens := Tokenize(text)

	var counts VoteCounts
	evidence := make([]EvidenceItem, 0, len(tokens))
	for i, tok := range tokens {
		stem := NormalizeToken(tok)
		switch {
		case matches(tok, stem, c.schedulingStems, c.schedulingWords):
			counts.Scheduling++
			evidence = append(evidence, EvidenceItem{Index: i, Keyword: tok, Category: IntentScheduling})
		case matches(tok, stem, c.qnaStems, c.qnaWords):
			counts.QnA++
			evidence = append(evidence, EvidenceItem{Index: i, Keyword: tok, Category: IntentQnA})
		}
	}

	total := counts.Scheduling + counts.QnA
	if total == 0 {
		return RoutingResult{
			Intent:     IntentUserDecision,
			Confidence: 0.5,
			Rationale:  "no vocabulary keywords matched",
			Counts:     counts,
			Evidence:   evidence,
			Source:     SourceRule,
			RawText:    text,
		}
	}

	margin := counts.Scheduling - counts.QnA
	if margin < 0 {
		margin = -margin
	}
	confidence := 0.5 + 0.5*float64(margin)/float64(max(1, total))

	intent := IntentUserDecision
	switch {
	case counts.Scheduling > counts.QnA:
		intent = IntentScheduling
	case counts.QnA > counts.Scheduling:
		intent = IntentQnA
	}

	return RoutingResult{
		Intent:     intent,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("keyword votes: scheduling=%d qna=%d", counts.Scheduling, counts.QnA),
		Counts:     counts,
		Evidence:   evidence,
		Source:     SourceRule,
		RawText:    text,
	}
}
