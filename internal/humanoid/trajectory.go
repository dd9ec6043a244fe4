// internal/humanoid/trajectory.go
package humanoid

import (
	"math"
	"time"
)

// Fitts's law coefficients in milliseconds.
const (
	fittsA       = 100.0
	fittsB       = 150.0
	targetWidth  = 30.0
	minPathSteps = 2
	maxPathSteps = 60
)

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// MoveDuration estimates how long a person takes to move the cursor over
// distance pixels, with +/-15% jitter.
func (p *Pacer) MoveDuration(distance float64) time.Duration {
	id := math.Log2(1.0 + distance/targetWidth)
	mt := fittsA + fittsB*id
	mt += mt * p.Uniform(-0.15, 0.15)
	return time.Duration(mt * float64(time.Millisecond))
}

// PathSteps picks how many intermediate mouse events a move of duration d
// is split into, about one every 10ms.
func PathSteps(d time.Duration) int {
	n := int(d / (10 * time.Millisecond))
	if n < minPathSteps {
		return minPathSteps
	}
	if n > maxPathSteps {
		return maxPathSteps
	}
	return n
}

// Path returns steps points on a cubic Bezier curve from start to end. The
// control points bow sideways by a random fraction of the distance, and the
// points are spaced with ease-in-out timing so the cursor accelerates and
// then settles. The final point is always end.
func (p *Pacer) Path(start, end Vector2D, steps int) []Vector2D {
	span := end.Sub(start)
	dist := span.Mag()
	if dist < 1.0 || steps < minPathSteps {
		return []Vector2D{end}
	}

	normal := span.Normalize().Perp()
	bow1 := p.Uniform(-0.25, 0.25) * dist
	bow2 := p.Uniform(-0.25, 0.25) * dist
	c1 := start.Add(span.Mul(1.0 / 3.0)).Add(normal.Mul(bow1))
	c2 := start.Add(span.Mul(2.0 / 3.0)).Add(normal.Mul(bow2))

	path := make([]Vector2D, steps)
	for i := 0; i < steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps-1))
		omt := 1.0 - t
		path[i] = start.Mul(omt * omt * omt).
			Add(c1.Mul(3 * omt * omt * t)).
			Add(c2.Mul(3 * omt * t * t)).
			Add(end.Mul(t * t * t))
	}
	path[steps-1] = end
	return path
}
