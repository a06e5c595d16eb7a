package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// DefaultDimension is the embedding size used across the pipeline.
const DefaultDimension = 384

// FallbackVector derives a unit vector of the given dimension from text.
// The same text always yields the same vector, so a provider outage does not
// make ranking non-deterministic.
func FallbackVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))
	v := make([]float32, dimension)
	for i := range v {
		v[i] = float32(rng.Float64() - 0.5)
	}
	return Normalize(v)
}
