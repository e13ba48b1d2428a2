package journal

import (
	"context"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/memory"
)

// MemorySource lists the index jobs that rebuild an owner's journal memories.
type MemorySource struct {
	repo Repository
}

func NewMemorySource(repo Repository) *MemorySource {
	return &MemorySource{repo: repo}
}

func (s *MemorySource) IndexJobs(ctx context.Context, ownerID uuid.UUID) ([]memory.Job, error) {
	entries, err := s.repo.ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	jobs := make([]memory.Job, 0, len(entries))
	for i := range entries {
		jobs = append(jobs, entries[i].IndexJob())
	}
	return jobs, nil
}
