// Package embedding turns text into vectors: a bounded, concurrency-safe
// cache in front of an embedding provider, deterministic fallback vectors
// and the vector math shared by the stores.
package embedding

import (
	"fmt"
	"math"
)

// Dot returns the dot product of a and b.
// It panics when the dimensions differ: mixing vectors from different
// models is a programming error.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("embedding: dimension mismatch: %d != %d", len(a), len(b)))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
// It panics when the dimensions differ.
func Cosine(a, b []float32) float32 {
	dot := Dot(a, b)
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(float64(dot) / (na * nb))
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}
