// Package rng is the single shared random source of a round.
//
// The generator is a seeded PCG so a round replays identically from a snapshot
// plus the recorded input stream.
package rng

import (
	"fmt"
	"math/rand/v2"
)

// Source is what the simulation draws from.
type Source interface {
	// NextInt returns a uniform integer in [0, max). max must be > 0.
	NextInt(max int) int
	// NextFloat returns a uniform float in [min, max).
	NextFloat(min, max float64) float64
}

type PCG struct {
	src *rand.PCG
	r   *rand.Rand
}

func New(seed int64) *PCG {
	src := rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	return &PCG{src: src, r: rand.New(src)}
}

func (p *PCG) NextInt(max int) int {
	if max <= 0 {
		return 0
	}
	return p.r.IntN(max)
}

func (p *PCG) NextFloat(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + p.r.Float64()*(max-min)
}

// State returns the serialized generator state.
func (p *PCG) State() ([]byte, error) {
	return p.src.MarshalBinary()
}

// Restore replaces the generator state with one produced by State.
func (p *PCG) Restore(state []byte) error {
	if err := p.src.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("rng restore: %w", err)
	}
	return nil
}
