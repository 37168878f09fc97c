// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"strings"
	"testing"
)

func TestSafeLogString_OpenAIKey(t *testing.T) {
	in := "error: sk-abcdefghijklmnopqrstuvwxyz012345 returned 401"
	out := SafeLogString(in)
	if strings.Contains(out, "sk-abcdefghijklmnop") {
		t.Errorf("OpenAI key not redacted: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:openai_key]") {
		t.Errorf("expected openai_key label, got: %s", out)
	}
}

func TestSafeLogString_PineconeKey(t *testing.T) {
	in := "upsert failed: pcsk_4Abc123def456ghi789jkl012mno rejected"
	out := SafeLogString(in)
	if strings.Contains(out, "pcsk_4Abc") {
		t.Errorf("Pinecone key not redacted: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:pinecone_key]") {
		t.Errorf("expected pinecone_key label, got: %s", out)
	}
}

func TestSafeLogString_BearerToken(t *testing.T) {
	in := "header was Authorization: Bearer abc123def456ghi789"
	out := SafeLogString(in)
	if strings.Contains(out, "abc123def456ghi789") {
		t.Errorf("bearer token not redacted: %s", out)
	}
}

func TestSafeLogString_NoSecrets(t *testing.T) {
	in := "normal log message with no secrets"
	if out := SafeLogString(in); out != in {
		t.Errorf("clean string modified: %s", out)
	}
}

func TestSafeLogString_Empty(t *testing.T) {
	if out := SafeLogString(""); out != "" {
		t.Errorf("empty string modified: %q", out)
	}
}

func TestSafeLogString_ShortPrefixNotRedacted(t *testing.T) {
	// "sk-test" is too short to be a real key and should pass through.
	in := "model sk-test not found"
	if out := SafeLogString(in); out != in {
		t.Errorf("short prefix falsely redacted: %s", out)
	}
}
