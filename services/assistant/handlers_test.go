// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

func newTestRouter(t *testing.T, chatFunc func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service, _, _ := newTestChatService(t, chatFunc)
	engine := gin.New()
	v1 := engine.Group("/v1")
	RegisterRoutes(v1, NewHandlers(service, nil))
	return engine
}

func performRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandleChat_Success(t *testing.T) {
	engine := newTestRouter(t, func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
		return "Our pharmacy is open 9 to 5.", nil
	})

	w := performRequest(engine, http.MethodPost, "/v1/chat", `{"message": "What are your hours?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result ChatResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.Response != "Our pharmacy is open 9 to 5." {
		t.Errorf("response = %q", result.Response)
	}
	if result.ConversationID == "" || result.MessageID == "" {
		t.Error("conversation and message ids should be set")
	}
	if result.RoutingDecision.Intent == "" {
		t.Error("the routing decision should be included")
	}
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	engine := newTestRouter(t, func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
		t.Error("the model should not be called")
		return "", nil
	})

	w := performRequest(engine, http.MethodPost, "/v1/chat", `{"message": "   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != "EMPTY_MESSAGE" {
		t.Errorf("code = %q, want EMPTY_MESSAGE", resp.Code)
	}
}

func TestHandleChat_InvalidBody(t *testing.T) {
	engine := newTestRouter(t, func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
		return "", nil
	})

	w := performRequest(engine, http.MethodPost, "/v1/chat", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", resp.Code)
	}
}

func TestHandleChat_UnknownConversation(t *testing.T) {
	engine := newTestRouter(t, func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
		return "reply", nil
	})

	w := performRequest(engine, http.MethodPost, "/v1/chat",
		`{"message": "What are your hours?", "conversation_id": "no-such-id"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != "CONVERSATION_NOT_FOUND" {
		t.Errorf("code = %q, want CONVERSATION_NOT_FOUND", resp.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	engine := newTestRouter(t, func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
		return "", nil
	})

	w := performRequest(engine, http.MethodGet, "/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
