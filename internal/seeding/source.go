package seeding

import (
	"math/rand/v2"
)

// Source yields floats in [0, 1). Seeding functions take one explicitly so a draw is reproducible.
type Source interface {
	Float64() float64
}

// LCG is a 32-bit linear congruential generator with the Numerical Recipes constants.
type LCG struct {
	state uint32
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

func NewLCG(seed int64) *LCG {
	return &LCG{state: uint32(seed)}
}

func (g *LCG) Float64() float64 {
	g.state = g.state*lcgMultiplier + lcgIncrement
	return float64(g.state) / (1 << 32)
}

// NewSource returns a deterministic LCG for a given seed and a randomly seeded generator otherwise.
func NewSource(seed *int64) Source {
	if seed != nil {
		return NewLCG(*seed)
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
