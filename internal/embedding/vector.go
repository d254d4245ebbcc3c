// Package embedding holds vector arithmetic shared by the word-vector providers.
package embedding

import (
	"errors"
	"fmt"
)

// ErrNoVectors is returned when there is nothing to average.
var ErrNoVectors = errors.New("no vectors to average")

// Mean returns the element-wise average of vectors. All vectors must share a length.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dim)
		}
		for k, x := range v {
			sum[k] += float64(x)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vectors))
	for k := range sum {
		out[k] = float32(sum[k] / n)
	}
	return out, nil
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b []float32) float32 {
	var d float32
	for i := range a {
		x := a[i] - b[i]
		d += x * x
	}
	return d
}
