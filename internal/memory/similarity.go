package memory

import (
	"errors"
	"math"
)

// ErrDimensionMismatch marks a stored vector whose length differs from the query's.
// Similarity treats it as 0; callers log it.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// CosineSimilarity returns dot(a,b)/(|a||b|) computed in float64.
// Mismatched lengths, empty vectors and zero magnitudes all yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding drift so callers can rely on [-1, 1].
	return max(-1, min(1, sim))
}
