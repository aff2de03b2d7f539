package interact

import (
	"math"
	"testing"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

func TestGridSnap(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
		in   diagram.Point
		want diagram.Point
	}{
		{"enabled rounds", DefaultGrid(), diagram.Pt(29, 31), diagram.Pt(20, 40)},
		{"enabled negative", DefaultGrid(), diagram.Pt(-9, -11), diagram.Pt(0, -20)},
		{"disabled passthrough", Grid{Size: 20}, diagram.Pt(29.5, 31.25), diagram.Pt(29.5, 31.25)},
		{"zero size passthrough", Grid{Enabled: true}, diagram.Pt(3, 4), diagram.Pt(3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.grid.Snap(tt.in); got != tt.want {
				t.Errorf("Snap(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGridSnapYieldsMultiples(t *testing.T) {
	g := DefaultGrid()
	for x := -100.0; x <= 100; x += 7.3 {
		p := g.Snap(diagram.Pt(x, x*1.7))
		if math.Mod(p.X, g.Size) != 0 || math.Mod(p.Y, g.Size) != 0 {
			t.Fatalf("Snap(%v) = %v, not a multiple of %v", x, p, g.Size)
		}
	}
}

func TestDrag(t *testing.T) {
	tr := viewport.Transform{X: 100, Y: 50, K: 2}
	var d Drag

	if _, _, ok := d.Move(diagram.Pt(0, 0), tr, Grid{}); ok {
		t.Fatal("Move while idle should report !ok")
	}

	// entity at world (40, 20); pointer at screen (200, 110) = world (50, 30)
	d.Begin("e1", diagram.Pt(200, 110), diagram.Pt(40, 20), tr)
	if !d.Active() || d.EntityID() != "e1" {
		t.Fatalf("drag not active: %+v", d)
	}
	if d.Offset() != diagram.Pt(10, 10) {
		t.Errorf("Offset = %v, want (10,10)", d.Offset())
	}

	// pointer to screen (300, 210) = world (100, 80)
	id, pos, ok := d.Move(diagram.Pt(300, 210), tr, Grid{})
	if !ok || id != "e1" || pos != diagram.Pt(90, 70) {
		t.Errorf("Move = (%q, %v, %v), want (e1, (90,70), true)", id, pos, ok)
	}

	_, pos, _ = d.Move(diagram.Pt(300, 210), tr, DefaultGrid())
	if pos != diagram.Pt(100, 80) {
		t.Errorf("snapped Move = %v, want (100,80)", pos)
	}

	d.End()
	if d.Active() || d.EntityID() != "" {
		t.Error("End should return to idle")
	}
	d.End() // idempotent
}

func TestPan(t *testing.T) {
	tr := viewport.Transform{X: 10, Y: 20, K: 1.5}
	var p Pan
	if _, ok := p.Move(diagram.Pt(1, 1), tr); ok {
		t.Fatal("Move while idle should report !ok")
	}

	p.Begin(diagram.Pt(100, 100), tr)
	got, ok := p.Move(diagram.Pt(130, 80), tr)
	if !ok {
		t.Fatal("Move should be active")
	}
	want := viewport.Transform{X: 40, Y: 0, K: 1.5}
	if got != want {
		t.Errorf("Move = %+v, want %+v", got, want)
	}
	p.End()
	if p.Active() {
		t.Error("End should return to idle")
	}
}

func TestLinker(t *testing.T) {
	var l Linker
	if _, _, done := l.Select("a"); done {
		t.Fatal("Select while idle must not complete")
	}

	l.Start("a")
	if !l.Active() || l.Source() != "a" {
		t.Fatalf("linker not awaiting target: %+v", l)
	}
	if _, _, done := l.Select("a"); done {
		t.Error("selecting the source must be a no-op")
	}
	if !l.Active() {
		t.Error("no-op select must keep waiting")
	}

	from, to, done := l.Select("b")
	if !done || from != "a" || to != "b" {
		t.Errorf("Select = (%q, %q, %v)", from, to, done)
	}
	if l.Active() {
		t.Error("completed link must return to idle")
	}

	l.Start("c")
	l.Cancel()
	if l.Active() {
		t.Error("Cancel must return to idle")
	}
}

func TestLinkerSourceDeleted(t *testing.T) {
	var l Linker
	l.Start("a")
	if l.SourceDeleted("b") {
		t.Error("deleting another entity must not cancel")
	}
	if !l.SourceDeleted("a") {
		t.Error("deleting the source must cancel")
	}
	if l.Active() {
		t.Error("linker should be idle")
	}
}
