package jobs

import (
	"math/rand/v2"
	"sync"
)

// Rand is a *rand.Rand safe for concurrent use, shared by the jobs that
// synthesize data.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a Rand over a PCG source with the given seeds.
func NewRand(seed1, seed2 uint64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// IntN returns a uniform int in [0, n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// IntRange returns a uniform int in [lo, hi].
func (r *Rand) IntRange(lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// Uniform returns a uniform float64 in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}
