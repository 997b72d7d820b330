package domain

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors.
//
// Returns a value between -1 and 1, where:
//   - 1 means vectors point the same way
//   - 0 means vectors are orthogonal (unrelated)
//   - -1 means vectors are opposite
//
// A zero vector has undefined direction; similarity against anything is
// defined as 0 rather than an error.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
