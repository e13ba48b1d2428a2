// Package journal stores a user's journal entries and keeps their memory records in step.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/memory"
)

const DefaultMood = 5

type Entry struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      int       `json:"mood"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryRequest is the body of both create and update; an update replaces every field.
type EntryRequest struct {
	Title   string   `json:"title" validate:"required,min=1,max=200"`
	Content string   `json:"content" validate:"required,min=1"`
	Mood    int      `json:"mood" validate:"omitempty,min=1,max=10"`
	Tags    []string `json:"tags" validate:"max=10,dive,max=50"`
}

func (req *EntryRequest) apply(e *Entry) {
	e.Title = req.Title
	e.Content = req.Content
	e.Mood = req.Mood
	if e.Mood == 0 {
		e.Mood = DefaultMood
	}
	e.Tags = req.Tags
	if e.Tags == nil {
		e.Tags = []string{}
	}
}

type ListParams struct {
	Page     int
	PageSize int
	Tag      string
}

// MemoryText is the text embedded for an entry.
func (e *Entry) MemoryText() string {
	return fmt.Sprintf("%s. %s. Mood: %d/10. Tags: %s", e.Title, e.Content, e.Mood, strings.Join(e.Tags, ", "))
}

func (e *Entry) memoryKey() memory.Key {
	return memory.Key{OwnerID: e.OwnerID, SourceType: memory.SourceJournal, SourceID: e.ID}
}

// IndexJob is the upsert that brings the entry's memory record up to date.
func (e *Entry) IndexJob() memory.Job {
	return memory.Job{
		Op:          memory.OpUpsert,
		Key:         e.memoryKey(),
		Text:        e.MemoryText(),
		RequestedAt: e.UpdatedAt,
	}
}
