// Package memory keeps a per-user vector index of journal-derived text and ranks it against queries.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// SourceJournal tags records derived from journal entries.
const SourceJournal = "journal"

// Key identifies the single record a source item may own.
type Key struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	SourceType string    `json:"source_type"`
	SourceID   uuid.UUID `json:"source_id"`
}

// Record is a row of memory_records.
type Record struct {
	ID            uuid.UUID `json:"id"`
	Key           Key       `json:"key"`
	Embedding     []float32 `json:"-"`
	Content       string    `json:"content"`
	SourceVersion time.Time `json:"source_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// RetrievedMemory is a ranked match returned by the Retriever.
type RetrievedMemory struct {
	Content    string    `json:"content"`
	SourceType string    `json:"source_type"`
	SourceID   uuid.UUID `json:"source_id"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

// Op is the kind of index job.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Job asks the store to bring one key in line with its source.
// RequestedAt becomes the record's SourceVersion.
type Job struct {
	Op          Op        `json:"op"`
	Key         Key       `json:"key"`
	Text        string    `json:"text,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// SearchRequest is the body of POST /memories/search.
type SearchRequest struct {
	Query         string   `json:"query" validate:"required,max=5000"`
	TopK          int      `json:"top_k" validate:"omitempty,min=1,max=50"`
	MinSimilarity *float64 `json:"min_similarity" validate:"omitempty,gte=-1,lt=1"`
}
