package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/embedding"
)

// letterEmbedder maps text to its a-z letter histogram; identical text gives identical vectors.
type letterEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
	fixed map[string][]float32
}

func (e *letterEmbedder) Dimension() int { return 26 }

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrUnavailable, e.err)
	}
	if v, ok := e.fixed[text]; ok {
		return v, nil
	}
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

// memRepo is an in-memory Repository with the same version and tombstone rules as Postgres.
type memRepo struct {
	mu      sync.Mutex
	records map[Key]Record
	deleted map[Key]bool
	err     error
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[Key]Record{}, deleted: map[Key]bool{}}
}

func (r *memRepo) Upsert(_ context.Context, rec *Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.deleted[rec.Key] {
		return false, nil
	}
	if cur, ok := r.records[rec.Key]; ok {
		if cur.SourceVersion.After(rec.SourceVersion) {
			return false, nil
		}
		rec.ID, rec.CreatedAt = cur.ID, cur.CreatedAt
	} else {
		rec.CreatedAt = time.Now()
	}
	r.records[rec.Key] = *rec
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.records, key)
	r.deleted[key] = true
	return nil
}

func (r *memRepo) tombstoned(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted[key]
}

func (r *memRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []Record
	for k, rec := range r.records {
		if k.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) count(ownerID uuid.UUID) int {
	recs, _ := r.ListByOwner(context.Background(), ownerID)
	return len(recs)
}

func journalKey(owner uuid.UUID) Key {
	return Key{OwnerID: owner, SourceType: SourceJournal, SourceID: uuid.New()}
}

// unitAt returns a 2-d unit vector whose cosine with [1, 0] is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

var errBoom = errors.New("boom")
