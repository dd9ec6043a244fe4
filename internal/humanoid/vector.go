// internal/humanoid/vector.go
package humanoid

import "math"

// Vector2D is a point or displacement in viewport coordinates.
type Vector2D struct {
	X, Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D  { return Vector2D{X: v.X * s, Y: v.Y * s} }

// Mag is the vector length.
func (v Vector2D) Mag() float64 { return math.Hypot(v.X, v.Y) }

// Dist is the distance between two points.
func (v Vector2D) Dist(o Vector2D) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Normalize returns the unit vector in v's direction, or zero for a zero vector.
func (v Vector2D) Normalize() Vector2D {
	mag := v.Mag()
	if mag < 1e-9 {
		return Vector2D{}
	}
	return v.Mul(1.0 / mag)
}

// Perp returns v rotated by 90 degrees.
func (v Vector2D) Perp() Vector2D { return Vector2D{X: -v.Y, Y: v.X} }
