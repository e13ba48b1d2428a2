package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/embedding"
	"github.com/futureecho/futureecho/internal/metrics"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.1
)

// RecordSource is satisfied by *Store.
type RecordSource interface {
	AllFor(ctx context.Context, ownerID uuid.UUID) ([]Record, error)
}

// Retriever ranks an owner's records against a query by brute-force cosine similarity.
type Retriever struct {
	records       RecordSource
	embedder      embedding.Embedder
	topK          int
	minSimilarity float64
}

func NewRetriever(records RecordSource, embedder embedding.Embedder, topK int, minSimilarity float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{records: records, embedder: embedder, topK: topK, minSimilarity: minSimilarity}
}

// RetrieveDefault uses the configured top-K and similarity floor.
func (r *Retriever) RetrieveDefault(ctx context.Context, ownerID uuid.UUID, query string) ([]RetrievedMemory, error) {
	return r.Retrieve(ctx, ownerID, query, r.topK, r.minSimilarity)
}

// Retrieve returns at most topK memories scoring strictly above minSimilarity,
// most similar first. Embedding failures are returned (wrapping
// embedding.ErrUnavailable) so the caller can pick a degraded path.
func (r *Retriever) Retrieve(ctx context.Context, ownerID uuid.UUID, query string, topK int, minSimilarity float64) ([]RetrievedMemory, error) {
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	if topK <= 0 || strings.TrimSpace(query) == "" {
		return []RetrievedMemory{}, nil
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	records, err := r.records.AllFor(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading memories: %w", err)
	}

	scored := make([]RetrievedMemory, 0, len(records))
	mismatched := 0
	for _, rec := range records {
		if len(rec.Embedding) != len(qvec) {
			mismatched++
		}
		scored = append(scored, RetrievedMemory{
			Content:    rec.Content,
			SourceType: rec.Key.SourceType,
			SourceID:   rec.Key.SourceID,
			Similarity: CosineSimilarity(qvec, rec.Embedding),
			CreatedAt:  rec.CreatedAt,
		})
	}
	if mismatched > 0 {
		slog.Warn("memory: skipping vectors of another dimension",
			"error", ErrDimensionMismatch,
			"owner_id", ownerID,
			"count", mismatched,
			"want", len(qvec),
		)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	// Sorted descending, so everything after the first miss also misses.
	cut := len(scored)
	for i, m := range scored {
		if m.Similarity <= minSimilarity {
			cut = i
			break
		}
	}
	return scored[:cut], nil
}
