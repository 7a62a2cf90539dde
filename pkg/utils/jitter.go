package utils

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the randomness source used for template selection and timing
// jitter. It is injected explicitly so tests can seed it deterministically.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand creates a source seeded from the current time.
func NewRand() *Rand {
	return NewSeededRand(time.Now().UnixNano())
}

// NewSeededRand creates a deterministic source for tests.
func NewSeededRand(seed int64) *Rand {
	return &Rand{rng: rand.New(rand.NewSource(seed))}
}

// Intn returns a uniform value in [0, n). n must be > 0.
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// Float64 returns a uniform value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// JitterDuration returns base plus a uniform jitter in [0, spread).
func (r *Rand) JitterDuration(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return base + time.Duration(r.rng.Int63n(int64(spread)))
}
