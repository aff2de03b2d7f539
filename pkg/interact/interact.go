// Package interact implements the pointer gesture state machines of the
// canvas: entity drag, canvas pan and relationship linking, plus grid snap.
//
// Every machine is a small value type with an explicit idle state. A gesture
// lives from Begin to End; End is safe to call from any state so a pointer-up
// delivered outside the original element always terminates the gesture.
package interact

import (
	"math"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// DefaultGridSize is the snap step in world units.
const DefaultGridSize = 20

// =============================================================================
// Grid
// =============================================================================

// Grid rounds positions to multiples of Size when Enabled.
type Grid struct {
	Enabled bool    `toml:"enabled" json:"enabled"`
	Size    float64 `toml:"size" json:"size"`
}

// DefaultGrid returns an enabled grid with [DefaultGridSize].
func DefaultGrid() Grid {
	return Grid{Enabled: true, Size: DefaultGridSize}
}

// Snap returns p rounded per axis to the nearest grid multiple, or p itself
// when snapping is off or the size is not positive.
func (g Grid) Snap(p diagram.Point) diagram.Point {
	if !g.Enabled || g.Size <= 0 {
		return p
	}
	return diagram.Pt(snap(p.X, g.Size), snap(p.Y, g.Size))
}

func snap(v, size float64) float64 {
	s := math.Round(v/size) * size
	if s == 0 {
		return 0 // avoid -0
	}
	return s
}

// =============================================================================
// Drag
// =============================================================================

// Drag moves one entity with the pointer.
type Drag struct {
	active   bool
	entityID string
	offset   diagram.Point
}

// Begin starts dragging entityID. The offset between the pointer, converted
// to world units under t, and the entity position is kept for the whole
// gesture. Beginning while already dragging replaces the previous gesture.
func (d *Drag) Begin(entityID string, pointer diagram.Point, entityPos diagram.Point, t viewport.Transform) {
	d.active = true
	d.entityID = entityID
	d.offset = t.ScreenToWorld(pointer).Sub(entityPos)
}

// Move returns the new position of the dragged entity for a pointer at
// pointer. ok is false when no drag is active.
func (d *Drag) Move(pointer diagram.Point, t viewport.Transform, g Grid) (entityID string, pos diagram.Point, ok bool) {
	if !d.active {
		return "", diagram.Point{}, false
	}
	return d.entityID, g.Snap(t.ScreenToWorld(pointer).Sub(d.offset)), true
}

// End returns to idle.
func (d *Drag) End() { *d = Drag{} }

// Active reports whether a drag is in progress.
func (d *Drag) Active() bool { return d.active }

// EntityID returns the dragged entity, or "" when idle.
func (d *Drag) EntityID() string { return d.entityID }

// Offset returns the recorded pointer offset in world units.
func (d *Drag) Offset() diagram.Point { return d.offset }

// =============================================================================
// Pan
// =============================================================================

// Pan translates the viewport with the pointer.
type Pan struct {
	active bool
	start  diagram.Point
}

// Begin records the pointer position relative to the current translation.
func (p *Pan) Begin(pointer diagram.Point, t viewport.Transform) {
	p.active = true
	p.start = pointer.Sub(diagram.Pt(t.X, t.Y))
}

// Move returns t translated so the grabbed point follows the pointer.
func (p *Pan) Move(pointer diagram.Point, t viewport.Transform) (viewport.Transform, bool) {
	if !p.active {
		return t, false
	}
	t.X = pointer.X - p.start.X
	t.Y = pointer.Y - p.start.Y
	return t, true
}

// End returns to idle.
func (p *Pan) End() { *p = Pan{} }

// Active reports whether a pan is in progress.
func (p *Pan) Active() bool { return p.active }

// =============================================================================
// Linker
// =============================================================================

// Linker tracks relationship creation: idle until Start, then awaiting a
// target until a distinct entity is selected or the link is cancelled.
type Linker struct {
	source string
}

// Start enters linking mode with sourceID as the from end.
func (l *Linker) Start(sourceID string) { l.source = sourceID }

// Select offers targetID as the to end. Selecting the source itself is a
// no-op and keeps waiting. done reports that a link was completed, in which
// case the linker is idle again.
func (l *Linker) Select(targetID string) (from, to string, done bool) {
	if l.source == "" || targetID == l.source {
		return "", "", false
	}
	from = l.source
	l.source = ""
	return from, targetID, true
}

// Cancel returns to idle.
func (l *Linker) Cancel() { l.source = "" }

// SourceDeleted cancels linking when entityID is the pending source.
// It reports whether linking was cancelled.
func (l *Linker) SourceDeleted(entityID string) bool {
	if l.source != "" && l.source == entityID {
		l.source = ""
		return true
	}
	return false
}

// Active reports whether the linker awaits a target.
func (l *Linker) Active() bool { return l.source != "" }

// Source returns the pending source entity, or "" when idle.
func (l *Linker) Source() string { return l.source }
