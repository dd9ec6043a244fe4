// internal/humanoid/pacer.go
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer owns the randomness and the clock of a session. Every randomized
// delay, draw and shuffle goes through it, which keeps a session
// reproducible from a seed.
type Pacer struct {
	clock Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer returns a pacer drawing from rng. A nil clock means the wall
// clock; a nil rng is seeded from the current time.
func NewPacer(clock Clock, rng *rand.Rand) *Pacer {
	if clock == nil {
		clock = RealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pacer{clock: clock, rng: rng}
}

// Clock exposes the underlying time source.
func (p *Pacer) Clock() Clock { return p.clock }

// Now is the pacer clock's current time.
func (p *Pacer) Now() time.Time { return p.clock.Now() }

// Float64 returns a draw in [0, 1).
func (p *Pacer) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// Intn returns a draw in [0, n). It panics if n <= 0, like rand.Intn.
func (p *Pacer) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

// IntRange returns a draw in [lo, hi], inclusive on both ends.
func (p *Pacer) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + p.Intn(hi-lo+1)
}

// Uniform returns a draw in [lo, hi).
func (p *Pacer) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + p.Float64()*(hi-lo)
}

// Chance reports true with probability prob.
func (p *Pacer) Chance(prob float64) bool {
	return p.Float64() < prob
}

// Shuffle randomizes the order of n elements.
func (p *Pacer) Shuffle(n int, swap func(i, j int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng.Shuffle(n, swap)
}

// Seconds converts fractional seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Between returns a uniformly drawn duration in [lo, hi) seconds.
func (p *Pacer) Between(lo, hi float64) time.Duration {
	return Seconds(p.Uniform(lo, hi))
}

// Sleep waits for d on the pacer's clock.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.clock.Sleep(ctx, d)
}

// Pause waits a uniformly drawn time between lo and hi seconds.
func (p *Pacer) Pause(ctx context.Context, lo, hi float64) error {
	return p.clock.Sleep(ctx, p.Between(lo, hi))
}
