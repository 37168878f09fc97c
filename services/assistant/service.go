// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelyhealth/carely/services/assistant/routing"
	"github.com/carelyhealth/carely/services/datatypes"
	"github.com/carelyhealth/carely/services/llm"
)

// =============================================================================
// Metrics and Tracing
// =============================================================================

var assistantTracer = otel.Tracer("carely.assistant")

var (
	chatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carely",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Chat messages handled by dispatched service.",
	}, []string{"service"})
)

// =============================================================================
// Chat Service
// =============================================================================

const generalSystemPrompt = `You are a helpful and empathetic medical assistant for Carely, a healthcare platform.
Your role is to:
- Provide clear, accurate, and empathetic responses to healthcare-related questions
- Help users understand medical information in accessible terms
- Guide users on when to seek professional medical care
- Help users book medical appointments when requested
- Never provide diagnoses or replace professional medical advice
- Always remind users to consult with healthcare professionals for serious medical concerns, diagnoses, or treatment decisions
- Be supportive, understanding, and maintain patient confidentiality
- If asked about medications, symptoms, or treatments, emphasize the importance of consulting healthcare providers

Remember: You are an assistant that provides information and guidance, but not medical diagnoses or treatment prescriptions.`

// ChatResult is the outcome of handling one user message.
type ChatResult struct {
	// Response is the assistant's reply text.
	Response string `json:"response"`

	// MessageID identifies the assistant's reply message.
	MessageID string `json:"message_id"`

	// ConversationID identifies the conversation the exchange belongs
	// to.
	ConversationID string `json:"conversation_id"`

	// AppointmentData carries structured data from an executed
	// appointment action, when any.
	AppointmentData map[string]any `json:"appointment_data,omitempty"`

	// Sources lists the knowledge passages a grounded Q&A answer drew
	// on, when any.
	Sources []datatypes.SourceInfo `json:"sources,omitempty"`

	// RoutingDecision records how the message was dispatched.
	RoutingDecision routing.RoutingDecision `json:"routing_decision"`
}

// ChatService coordinates routing, dispatch, and conversation state.
//
// Thread Safety: Safe for concurrent use if its collaborators are.
type ChatService struct {
	router        *routing.HybridRouter
	appointments  *AppointmentAgent
	qna           *QnAAgent
	client        llm.ChatClient
	conversations ConversationStore
	logger        *slog.Logger
}

// NewChatService assembles the chat service.
//
// Inputs:
//
//	router - Intent router. Must not be nil.
//	appointments - Appointment agent. Must not be nil.
//	qna - Q&A agent. Must not be nil.
//	client - Chat backend for the general-assistant fallback. Must not
//	be nil.
//	conversations - Conversation store. Must not be nil.
//	logger - Logger. If nil, slog.Default().
func NewChatService(router *routing.HybridRouter, appointments *AppointmentAgent, qna *QnAAgent, client llm.ChatClient, conversations ConversationStore, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		router:        router,
		appointments:  appointments,
		qna:           qna,
		client:        client,
		conversations: conversations,
		logger:        logger,
	}
}

// HandleMessage routes and answers one user message.
//
// Description:
//
//	Resolves the conversation (creating one when conversationID is
//	empty), classifies the message, dispatches to the appointment or
//	Q&A handler per the routing decision, and falls back to the general
//	assistant for everything else. Both the user message and the reply
//	are appended to the conversation's history with fresh message ids.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	conversationID - Existing conversation id, or "" to start one.
//	message - The user's message. Must be non-blank; callers validate.
//
// Outputs:
//
//	*ChatResult - Reply, ids, action data, and the routing decision.
//	error - Non-nil on unknown conversation ids or handler failure.
func (s *ChatService) HandleMessage(ctx context.Context, conversationID, message string) (*ChatResult, error) {
	ctx, span := assistantTracer.Start(ctx, "assistant.ChatService.HandleMessage")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("assistant: message must not be empty")
	}

	var conv *Conversation
	var err error
	if conversationID == "" {
		conv, err = s.conversations.Create(ctx)
	} else {
		conv, err = s.conversations.Get(ctx, conversationID)
	}
	if err != nil {
		return nil, err
	}
	history := conv.History()

	decision := s.router.RouteDecision(ctx, message)
	span.SetAttributes(
		attribute.String("next_service", decision.NextService),
		attribute.String("intent", decision.Intent),
	)
	chatMessagesTotal.WithLabelValues(decision.NextService).Inc()

	var response string
	var appointmentData map[string]any
	var sources []datatypes.SourceInfo

	switch decision.NextService {
	case routing.ServiceAppointment:
		reply, err := s.appointments.Process(ctx, message, history)
		if err != nil {
			return nil, err
		}
		response = reply.Response
		appointmentData = reply.ActionData

	case routing.ServiceQnA:
		response, sources, err = s.qna.Answer(ctx, message, history)
		if err != nil {
			return nil, err
		}

	default:
		response, err = s.generalAnswer(ctx, message, history)
		if err != nil {
			return nil, err
		}
	}

	userMessageID := uuid.NewString()
	assistantMessageID := uuid.NewString()

	if err := s.conversations.Append(ctx, conv.ID, StoredMessage{
		MessageID: userMessageID,
		Role:      "user",
		Content:   message,
	}); err != nil {
		return nil, err
	}
	if err := s.conversations.Append(ctx, conv.ID, StoredMessage{
		MessageID: assistantMessageID,
		Role:      "assistant",
		Content:   response,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("chat message handled",
		slog.String("conversation_id", conv.ID),
		slog.String("next_service", decision.NextService),
		slog.Float64("confidence", decision.Confidence))

	return &ChatResult{
		Response:        response,
		MessageID:       assistantMessageID,
		ConversationID:  conv.ID,
		AppointmentData: appointmentData,
		Sources:         sources,
		RoutingDecision: decision,
	}, nil
}

// generalAnswer runs the general medical assistant fallback.
func (s *ChatService) generalAnswer(ctx context.Context, message string, history []datatypes.Message) (string, error) {
	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: generalSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: message})

	reply, err := s.client.Chat(ctx, messages, llm.GenerationParams{
		Temperature: llm.Temperature(0.7),
		MaxTokens:   llm.MaxTokens(1000),
	})
	if err != nil {
		return "", fmt.Errorf("assistant: general model request: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
