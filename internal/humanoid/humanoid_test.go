// internal/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPacer(seed int64) (*Pacer, *FakeClock) {
	clock := NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewPacer(clock, rand.New(rand.NewSource(seed))), clock
}

func TestFakeClock(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := context.Background()

	require.NoError(t, clock.Sleep(ctx, 2*time.Second))
	require.NoError(t, clock.Sleep(ctx, 500*time.Millisecond))
	clock.Advance(time.Second)

	assert.Equal(t, time.Unix(3, 500_000_000), clock.Now())
	assert.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, 2500*time.Millisecond, clock.Total())

	clock.Reset()
	assert.Empty(t, clock.Sleeps())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, clock.Sleep(cancelled, time.Second), context.Canceled)
	assert.Empty(t, clock.Sleeps())
}

func TestRealClockHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := RealClock().Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacerRanges(t *testing.T) {
	p, clock := newTestPacer(7)

	for i := 0; i < 200; i++ {
		u := p.Uniform(0.5, 1.5)
		assert.GreaterOrEqual(t, u, 0.5)
		assert.Less(t, u, 1.5)

		n := p.IntRange(1, 3)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 3)
	}
	assert.Equal(t, 4.0, p.Uniform(4, 4))
	assert.Equal(t, 2, p.IntRange(2, 2))
	assert.False(t, p.Chance(0))
	assert.True(t, p.Chance(1))

	require.NoError(t, p.Pause(context.Background(), 2, 5))
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 2*time.Second)
	assert.Less(t, sleeps[0], 5*time.Second)
}

func TestPacerIsReproducible(t *testing.T) {
	a, _ := newTestPacer(42)
	b, _ := newTestPacer(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestScrollSteps(t *testing.T) {
	p, _ := newTestPacer(3)

	for _, distance := range []float64{300, -450, 800, 1} {
		steps := p.ScrollSteps(distance)
		require.GreaterOrEqual(t, len(steps), minScrollSteps)
		require.LessOrEqual(t, len(steps), maxScrollSteps)

		var sum float64
		for _, s := range steps {
			assert.Equal(t, math.Signbit(distance), math.Signbit(s))
			sum += s
		}
		assert.InDelta(t, distance, sum, 1e-9)
	}
	assert.Nil(t, p.ScrollSteps(0))
}

func TestPath(t *testing.T) {
	p, _ := newTestPacer(11)
	start, end := Vector2D{X: 10, Y: 10}, Vector2D{X: 410, Y: 310}

	path := p.Path(start, end, 25)
	require.Len(t, path, 25)
	assert.InDelta(t, start.X, path[0].X, 1e-9)
	assert.InDelta(t, start.Y, path[0].Y, 1e-9)
	assert.Equal(t, end, path[len(path)-1])

	// Short moves collapse to a single jump.
	nudge := end.Add(Vector2D{X: 0.2})
	assert.Equal(t, []Vector2D{nudge}, p.Path(end, nudge, 10))
}

func TestMoveDuration(t *testing.T) {
	p, _ := newTestPacer(5)
	near := p.MoveDuration(10)
	far := p.MoveDuration(2000)
	assert.Greater(t, far, near)
	assert.Greater(t, near, 80*time.Millisecond)

	assert.Equal(t, minPathSteps, PathSteps(time.Millisecond))
	assert.Equal(t, 30, PathSteps(300*time.Millisecond))
	assert.Equal(t, maxPathSteps, PathSteps(5*time.Second))
}
