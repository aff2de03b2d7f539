// Package viewport implements the canvas pan/zoom transform.
//
// A [Transform] maps world coordinates to screen coordinates:
//
//	screen = world*K + (X, Y)
//
// K is clamped to [MinScale, MaxScale]. [Transform.ZoomAt] keeps the world
// point under the cursor fixed on screen, and [Transform.FitToContent] frames
// every card in the viewport.
package viewport

import (
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
)

// Zoom and framing constants.
const (
	MinScale       = 0.2
	MaxScale       = 3.0
	FitMaxScale    = 1.2
	FitPadding     = 60
	WheelZoomSpeed = 0.001
	ButtonZoomStep = 0.1
)

// Spawn offsets place new cards left of and above the viewport centre so the
// card body, not its corner, lands in the middle.
const (
	SpawnOffsetX = 400
	SpawnOffsetY = 100
)

// Size is a viewport size in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the centre of the viewport in screen coordinates.
func (s Size) Center() diagram.Point { return diagram.Pt(s.Width/2, s.Height/2) }

// Transform is the canvas translation and scale.
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity returns the unpanned, unzoomed transform.
func Identity() Transform { return Transform{K: 1} }

// Clamp limits k to [MinScale, MaxScale].
func Clamp(k float64) float64 { return min(max(k, MinScale), MaxScale) }

// Pan returns t translated by (dx, dy) screen pixels.
func (t Transform) Pan(dx, dy float64) Transform {
	t.X += dx
	t.Y += dy
	return t
}

// ZoomAt returns t rescaled by delta while keeping the world point under
// screen fixed.
func (t Transform) ZoomAt(screen diagram.Point, delta float64) Transform {
	k := Clamp(t.K + delta)
	w := t.ScreenToWorld(screen)
	return Transform{
		X: screen.X - w.X*k,
		Y: screen.Y - w.Y*k,
		K: k,
	}
}

// ZoomCentered zooms toward the centre of the viewport.
func (t Transform) ZoomCentered(size Size, delta float64) Transform {
	return t.ZoomAt(size.Center(), delta)
}

// WheelZoom applies a ctrl-wheel step: scrolling down (positive deltaY) zooms out.
func (t Transform) WheelZoom(screen diagram.Point, deltaY float64) Transform {
	return t.ZoomAt(screen, -deltaY*WheelZoomSpeed)
}

// ScreenToWorld converts a screen point to world coordinates.
func (t Transform) ScreenToWorld(p diagram.Point) diagram.Point {
	return diagram.Pt((p.X-t.X)/t.K, (p.Y-t.Y)/t.K)
}

// WorldToScreen converts a world point to screen coordinates.
func (t Transform) WorldToScreen(p diagram.Point) diagram.Point {
	return diagram.Pt(p.X*t.K+t.X, p.Y*t.K+t.Y)
}

// FitToContent returns a transform that frames every card with FitPadding
// around it, centred in the viewport. With no entities it returns [Identity].
func FitToContent(entities []diagram.Entity, m geometry.Metrics, size Size, exportMode bool) Transform {
	bounds, ok := m.ContentBounds(entities, exportMode)
	if !ok || size.Width <= 0 || size.Height <= 0 {
		return Identity()
	}
	bounds = bounds.Expand(FitPadding)
	k := min(size.Width/bounds.Width(), size.Height/bounds.Height(), FitMaxScale)
	k = Clamp(k)
	return Transform{
		X: (size.Width-bounds.Width()*k)/2 - bounds.Left*k,
		Y: (size.Height-bounds.Height()*k)/2 - bounds.Top*k,
		K: k,
	}
}

// SpawnPoint returns the world position for a new card: the viewport centre
// shifted by the spawn offsets, converted to world coordinates.
func (t Transform) SpawnPoint(size Size) diagram.Point {
	return diagram.Pt(
		(size.Width/2-SpawnOffsetX-t.X)/t.K,
		(size.Height/2-SpawnOffsetY-t.Y)/t.K,
	)
}
