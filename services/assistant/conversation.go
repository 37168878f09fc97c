// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant wires the chat service: it routes each message
// through intent classification, dispatches to the appointment or Q&A
// handler, and keeps per-conversation history.
package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelyhealth/carely/services/datatypes"
)

// =============================================================================
// Conversation Storage
// =============================================================================

// StoredMessage is one message in a conversation's history.
type StoredMessage struct {
	// MessageID uniquely identifies the message.
	MessageID string `json:"message_id"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// CreatedAt orders the history.
	CreatedAt time.Time `json:"created_at"`
}

// Conversation holds the state of one chat session. Each session has
// its own history; no state is shared between conversations.
type Conversation struct {
	// ID uniquely identifies the conversation.
	ID string `json:"conversation_id"`

	// Messages is the ordered history, oldest first.
	Messages []StoredMessage `json:"messages"`

	// CreatedAt is when the conversation started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the last message was appended.
	UpdatedAt time.Time `json:"updated_at"`
}

// History converts the stored messages into the chat wire format.
func (c *Conversation) History() []datatypes.Message {
	history := make([]datatypes.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		history = append(history, datatypes.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// ConversationStore persists conversations and their histories.
type ConversationStore interface {
	// Create starts a new conversation with a fresh id.
	Create(ctx context.Context) (*Conversation, error)

	// Get returns the conversation with the given id.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Append adds a message to the conversation's history.
	Append(ctx context.Context, id string, msg StoredMessage) error
}

// ErrConversationNotFound is returned by Get and Append for unknown
// conversation ids.
var ErrConversationNotFound = fmt.Errorf("assistant: conversation not found")

// =============================================================================
// In-Memory Conversation Store
// =============================================================================

// MemoryConversationStore keeps conversations in process memory.
//
// Thread Safety: Safe for concurrent use.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	now           func() time.Time
}

// NewMemoryConversationStore returns an empty store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// Create starts a new conversation with a UUID id.
func (s *MemoryConversationStore) Create(_ context.Context) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return conv.clone(), nil
}

// Get returns a copy of the conversation with the given id.
func (s *MemoryConversationStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv.clone(), nil
}

// Append adds a message to the conversation's history in order.
func (s *MemoryConversationStore) Append(_ context.Context, id string, msg StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

func (c *Conversation) clone() *Conversation {
	dup := *c
	dup.Messages = append([]StoredMessage(nil), c.Messages...)
	return &dup
}
