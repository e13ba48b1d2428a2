// Package activity records what happened to a user's data: chat turns, memory indexing.
package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

const (
	TypeChatTurnCompleted = "chat_turn_completed"
	TypeChatTurnFailed    = "chat_turn_failed"
	TypeMemoryIndexed     = "memory_indexed"
	TypeMemoryIndexFailed = "memory_index_failed"
	TypeMemoryRemoved     = "memory_removed"
)

// Event is what producers publish. It is also the JetStream payload.
type Event struct {
	OwnerID      uuid.UUID `json:"owner_id"`
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Entry matches the activity_events table.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	EventType    string          `json:"event_type"`
	Severity     string          `json:"severity"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for activity queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// toEntry converts a published event into a row. Non-UUID resource ids are dropped.
func toEntry(e Event) *Entry {
	entry := &Entry{
		ID:           uuid.New(),
		OwnerID:      e.OwnerID,
		EventType:    e.Type,
		Severity:     e.Severity,
		ResourceType: e.ResourceType,
		CreatedAt:    e.Timestamp,
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if e.ResourceID != "" {
		if parsed, err := uuid.Parse(e.ResourceID); err == nil {
			entry.ResourceID = &parsed
		}
	}
	if data, err := json.Marshal(map[string]string{"message": e.Details}); err == nil {
		entry.Details = data
	}
	return entry
}
