package domain

import "math"

// Position is a 2-D coordinate on the concept map canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are real numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Offset returns p moved by dx, dy.
func (p Position) Offset(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Polar returns the point at the given radius and angle (radians) around p.
func (p Position) Polar(radius, angle float64) Position {
	return Position{
		X: p.X + radius*math.Cos(angle),
		Y: p.Y + radius*math.Sin(angle),
	}
}
