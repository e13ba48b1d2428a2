package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/embedding"
)

var (
	// ErrEmptyText is returned when asked to index blank text.
	ErrEmptyText = errors.New("memory text is empty")
	// ErrUnknownOp is returned for a job whose Op is neither upsert nor delete.
	ErrUnknownOp = errors.New("unknown index op")
)

// Store embeds text and keeps exactly one record per Key.
type Store struct {
	repo     Repository
	embedder embedding.Embedder
	now      func() time.Time
}

func NewStore(repo Repository, embedder embedding.Embedder) *Store {
	return &Store{repo: repo, embedder: embedder, now: time.Now}
}

// Upsert indexes text for key, versioned at the current time.
func (s *Store) Upsert(ctx context.Context, key Key, text string) error {
	return s.UpsertAt(ctx, key, text, s.now())
}

// UpsertAt indexes text for key. A record already stored with a newer version
// wins, so a slow job for an old edit cannot overwrite a later one.
func (s *Store) UpsertAt(ctx context.Context, key Key, text string, version time.Time) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding memory text: %w", err)
	}

	_, err = s.repo.Upsert(ctx, &Record{
		ID:            uuid.New(),
		Key:           key,
		Embedding:     vec,
		Content:       text,
		SourceVersion: version.UTC(),
	})
	return err
}

// DeleteFor removes the record for key and refuses any later upsert for it.
// Deleting a missing record is not an error.
func (s *Store) DeleteFor(ctx context.Context, key Key) error {
	return s.repo.Delete(ctx, key)
}

// AllFor returns every record of owner in no particular order.
func (s *Store) AllFor(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Apply executes an index job.
func (s *Store) Apply(ctx context.Context, job Job) error {
	switch job.Op {
	case OpUpsert:
		version := job.RequestedAt
		if version.IsZero() {
			version = s.now()
		}
		return s.UpsertAt(ctx, job.Key, job.Text, version)
	case OpDelete:
		return s.DeleteFor(ctx, job.Key)
	default:
		return fmt.Errorf("%w %q", ErrUnknownOp, job.Op)
	}
}
