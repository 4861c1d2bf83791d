// Package cluster assigns embeddings to themes. A theme is the set of stored
// records sharing a theme id; this package only decides which id a new vector
// belongs to.
package cluster

import (
	"fmt"
	"math"
)

// Cosine returns the cosine similarity of a and b. Vectors of different length
// score 0, and so does any pair involving a zero-norm vector.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0
	}
	return score
}

// Mean returns the component-wise arithmetic mean of vectors. All vectors must
// share one dimension.
func Mean(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("mean of empty vectors")
	}
	sum := make([]float64, dim)
	for i, vector := range vectors {
		if len(vector) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(vector), dim)
		}
		for j, value := range vector {
			sum[j] += value
		}
	}

	n := float64(len(vectors))
	for j := range sum {
		sum[j] /= n
	}
	return sum, nil
}
