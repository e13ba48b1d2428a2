// Package chat runs conversations with the user's future self and keeps their history.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidMessage is returned for a blank or oversized chat message.
	ErrInvalidMessage = errors.New("invalid chat message")
	// ErrGenerationFailed ends a stream whose reply could not be produced.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrReplyNotSaved ends a stream whose reply was produced but could not be stored.
	ErrReplyNotSaved = errors.New("reply could not be saved")
	// ErrSessionNotFound covers both missing sessions and sessions of other users.
	ErrSessionNotFound = errors.New("chat session not found")
)

const (
	MaxMessageLength = 5000
	titleLength      = 50
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Session struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionSummary struct {
	Session
	MessageCount int64 `json:"message_count"`
}

type SessionWithMessages struct {
	Session
	Messages []Message `json:"messages"`
}

type Message struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string     `json:"message" validate:"required,max=5000"`
	SessionID *uuid.UUID `json:"session_id"`
}

type TurnRequest struct {
	OwnerID   uuid.UUID
	Message   string
	SessionID *uuid.UUID
}

type EventType string

const (
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one element of a turn stream. Zero or more chunks are followed by
// exactly one done or error event.
type Event struct {
	Type      EventType
	Text      string
	SessionID uuid.UUID
	MessageID uuid.UUID
	Err       error
}
