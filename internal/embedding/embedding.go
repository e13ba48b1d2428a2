// Package embedding converts text into fixed-dimension vectors via a remote model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned for any failure to obtain a usable vector.
// Callers decide whether to degrade (prompt composition) or surface it (indexing).
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder turns text into a vector. Implementations do not retry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// checkVector rejects empty, wrong-sized or non-finite vectors.
func checkVector(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrUnavailable)
	}
	if len(v) != dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrUnavailable, len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite component", ErrUnavailable)
		}
	}
	return nil
}
