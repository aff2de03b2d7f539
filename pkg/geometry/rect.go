package geometry

import "github.com/matzehuels/ercanvas/pkg/diagram"

// Rect is an axis-aligned rectangle in world units. Y grows downward, so Top
// is less than Bottom.
type Rect struct {
	Left, Top     float64
	Right, Bottom float64
}

// Width returns the horizontal span of the rectangle.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical span of the rectangle.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() float64 { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }

// Center returns the centre point of the rectangle.
func (r Rect) Center() diagram.Point { return diagram.Pt(r.CenterX(), r.CenterY()) }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p diagram.Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Expand returns r grown by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{Left: r.Left - d, Top: r.Top - d, Right: r.Right + d, Bottom: r.Bottom + d}
}

// IncludePoint returns r grown to contain p.
func (r Rect) IncludePoint(p diagram.Point) Rect {
	return Rect{
		Left:   min(r.Left, p.X),
		Top:    min(r.Top, p.Y),
		Right:  max(r.Right, p.X),
		Bottom: max(r.Bottom, p.Y),
	}
}
