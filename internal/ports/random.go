package ports

import "math/rand/v2"

type realRandom struct{}

// NewRealRandom returns the production Random backed by math/rand/v2's
// top-level generator.
func NewRealRandom() Random { return realRandom{} }

func (realRandom) Float64s(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rand.Float64()
	}
	return out
}
