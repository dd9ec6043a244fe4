// internal/humanoid/scrolling.go
package humanoid

import "math"

const (
	minScrollSteps = 5
	maxScrollSteps = 15
)

// ScrollSteps splits a smooth scroll of distance pixels into 5 to 15 uneven
// increments. Each increment varies between 0.7x and 1.3x of the even share
// before the whole set is rescaled, so the increments always add up to
// distance. The sign of distance is preserved on every step.
func (p *Pacer) ScrollSteps(distance float64) []float64 {
	if distance == 0 {
		return nil
	}
	n := p.IntRange(minScrollSteps, maxScrollSteps)
	base := math.Abs(distance) / float64(n)

	steps := make([]float64, n)
	var sum float64
	for i := range steps {
		steps[i] = base * p.Uniform(0.7, 1.3)
		sum += steps[i]
	}

	scale := distance / sum
	for i := range steps {
		steps[i] *= scale
	}
	return steps
}
