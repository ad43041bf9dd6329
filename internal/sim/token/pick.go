package token

import "tagarena.dev/internal/sim/rng"

// Weighted is one bucket of a selection table.
type Weighted[T any] struct {
	Value  T
	Weight int
}

// Pick draws uniformly in [0, sum) and returns the first bucket whose running
// total reaches the draw, so ties go to the earlier bucket. Zero-weight buckets are
// never chosen. An empty or all-zero table returns the last entry (zero T if empty).
func Pick[T any](table []Weighted[T], r rng.Source) T {
	var zero T
	if len(table) == 0 {
		return zero
	}
	sum := 0
	for _, w := range table {
		if w.Weight > 0 {
			sum += w.Weight
		}
	}
	if sum <= 0 {
		return table[len(table)-1].Value
	}
	draw := r.NextInt(sum)
	acc := 0
	for _, w := range table {
		if w.Weight <= 0 {
			continue
		}
		acc += w.Weight
		if acc >= draw {
			return w.Value
		}
	}
	return table[len(table)-1].Value
}
