package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto"

	"github.com/futureecho/futureecho/internal/metrics"
)

// Cached memoises successful embeddings by text. Errors are never cached.
type Cached struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCached keeps up to maxItems vectors.
func NewCached(next Embedder, maxItems int64) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Dimension() int { return c.next.Dimension() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		metrics.EmbeddingRequestsTotal.WithLabelValues("cache_hit").Inc()
		return slices.Clone(v.([]float32)), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, slices.Clone(vec), 1)
	return vec, nil
}

// Close releases the cache goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return string(sum[:])
}
