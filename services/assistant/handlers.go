// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// HTTP Types
// =============================================================================

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	// Message is the user's message. Required, non-blank.
	Message string `json:"message"`

	// ConversationID continues an existing conversation. Empty starts
	// a new one.
	ConversationID string `json:"conversation_id,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers holds the HTTP handlers for the chat API.
type Handlers struct {
	service *ChatService
	logger  *slog.Logger
}

// NewHandlers creates the handler set over a chat service.
func NewHandlers(service *ChatService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleChat handles POST /v1/chat.
//
// Description:
//
//	Validates the request, routes the message through the chat service,
//	and returns the reply with conversation and message ids, any
//	appointment action data, and the routing decision.
//
// Response:
//
//	200 OK: ChatResult
//	400 Bad Request: Missing or blank message
//	404 Not Found: Unknown conversation_id
//	500 Internal Server Error: Handler failure
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("handler", "HandleChat"))

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message cannot be empty",
			Code:  "EMPTY_MESSAGE",
		})
		return
	}

	result, err := h.service.HandleMessage(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "conversation not found",
				Code:  "CONVERSATION_NOT_FOUND",
			})
			return
		}
		logger.Error("chat handling failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "error processing message",
			Code:  "CHAT_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleHealth handles GET /v1/health.
//
// Response:
//
//	200 OK: {"status": "ok"}
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
