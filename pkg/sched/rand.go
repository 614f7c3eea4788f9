package sched

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the random source used for jitter and weighted allocation. Injected
// so tests can pin a seed and assert deterministic results.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// lockedRand guards a math/rand source for concurrent use
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand creates a seeded random source safe for concurrent use
func NewRand(seed int64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))} //nolint:gosec // jitter does not need crypto randomness
}

// DefaultRand creates a time-seeded random source
func DefaultRand() Rand {
	return NewRand(time.Now().UnixNano())
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rnd.Shuffle(n, swap)
}
