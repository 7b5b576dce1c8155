package signal

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness the derivation step consumes. *rand.Rand from
// math/rand/v2 satisfies it; tests supply fixed sequences.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// lockedRand serializes access to a math/rand/v2 generator, which is not safe
// for concurrent use on its own.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe PCG generator. A zero seed picks one from
// the clock.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
