// Package physics provides the pure movement and overlap primitives used by
// the room simulation. Functions here hold no state and know nothing about
// players or knibbles; they operate on positions, velocities and radii.
package physics

import "math"

// Vec2 is a 2D vector in world pixels.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the axis-aligned rectangle an entity may occupy.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IntegrateAndBounce advances pos by vel for one tick and resolves boundary
// collisions against b: a circle edge crossing a bound edge is clamped back
// to the legal range and the corresponding velocity component is reflected
// to point back into the arena. Calling it again with zero velocity leaves
// the state unchanged.
func IntegrateAndBounce(pos, vel *Vec2, radius float64, b Bounds) {
	pos.X += vel.X
	pos.Y += vel.Y

	if pos.X-radius < b.X {
		pos.X = b.X + radius
		vel.X = math.Abs(vel.X)
	}
	if pos.X+radius > b.X+b.Width {
		pos.X = b.X + b.Width - radius
		vel.X = -math.Abs(vel.X)
	}
	if pos.Y-radius < b.Y {
		pos.Y = b.Y + radius
		vel.Y = math.Abs(vel.Y)
	}
	if pos.Y+radius > b.Y+b.Height {
		pos.Y = b.Y + b.Height - radius
		vel.Y = -math.Abs(vel.Y)
	}
}

// CirclesOverlap reports whether two circles touch or intersect. The
// boundary case (center distance exactly equal to the radius sum) counts
// as overlapping.
func CirclesOverlap(ax, ay, ar, bx, by, br float64) bool {
	dx := ax - bx
	dy := ay - by
	rr := ar + br
	return dx*dx+dy*dy <= rr*rr
}
