package canvas

import (
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/store"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

func newController(t *testing.T) *Controller {
	t.Helper()
	n := 0
	s := store.New(store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}))
	return NewController(s, WithSize(viewport.Size{Width: 1000, Height: 800}))
}

func TestAddEntitySpawnsAndSelects(t *testing.T) {
	c := newController(t)
	e, err := c.AddEntity("Student", []string{"Name"})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if e.Position != diagram.Pt(100, 300) {
		t.Errorf("Position = %v, want (100,300)", e.Position)
	}
	if c.Selected() != e.ID {
		t.Errorf("Selected = %q, want %q", c.Selected(), e.ID)
	}

	c.SetTransform(viewport.Transform{X: 7, Y: 3, K: 1})
	e2, _ := c.AddEntity("", nil)
	if e2.Position != diagram.Pt(100, 300) {
		t.Errorf("snapped spawn = %v, want (100,300)", e2.Position)
	}
	c.ToggleSnap()
	e3, _ := c.AddEntity("", nil)
	if e3.Position != diagram.Pt(93, 297) {
		t.Errorf("unsnapped spawn = %v, want (93,297)", e3.Position)
	}
}

func TestDragHeader(t *testing.T) {
	c := newController(t)
	e, _ := c.AddEntity("A", nil) // at (100, 300)

	if hit := c.HitTest(diagram.Pt(110, 310)); hit.Kind != HitHeader || hit.EntityID != e.ID {
		t.Fatalf("HitTest = %+v", hit)
	}
	if _, err := c.PointerDown(diagram.Pt(110, 310), ButtonPrimary); err != nil {
		t.Fatal(err)
	}
	if c.Dragging() != e.ID || c.Selected() != e.ID {
		t.Fatalf("drag not started: dragging=%q selected=%q", c.Dragging(), c.Selected())
	}

	if err := c.PointerMove(diagram.Pt(213, 407)); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Store().Entity(e.ID)
	if got.Position != diagram.Pt(200, 400) {
		t.Errorf("Position = %v, want (200,400)", got.Position)
	}

	c.PointerUp(diagram.Pt(5000, 5000)) // released far outside the card
	if c.Dragging() != "" {
		t.Error("PointerUp must end the drag")
	}
	c.PointerMove(diagram.Pt(0, 0))
	got, _ = c.Store().Entity(e.ID)
	if got.Position != diagram.Pt(200, 400) {
		t.Error("moves after PointerUp must not move the entity")
	}
}

func TestDragUnsnapped(t *testing.T) {
	c := newController(t)
	c.ToggleSnap()
	e, _ := c.AddEntity("A", nil)
	c.PointerDown(diagram.Pt(110, 310), ButtonPrimary)
	c.PointerMove(diagram.Pt(213, 407))
	got, _ := c.Store().Entity(e.ID)
	if got.Position != diagram.Pt(203, 397) {
		t.Errorf("Position = %v, want (203,397)", got.Position)
	}
}

func TestBodyPressSelectsWithoutDrag(t *testing.T) {
	c := newController(t)
	e, _ := c.AddEntity("A", nil)
	c.Select("")
	c.PointerDown(diagram.Pt(150, 400), ButtonPrimary)
	if c.Selected() != e.ID {
		t.Errorf("Selected = %q", c.Selected())
	}
	if c.Dragging() != "" || c.Panning() {
		t.Error("body press must not start a gesture")
	}
}

func TestPanEmptyCanvas(t *testing.T) {
	c := newController(t)
	c.AddEntity("A", nil)

	c.PointerDown(diagram.Pt(900, 50), ButtonPrimary)
	if !c.Panning() {
		t.Fatal("press on empty canvas should pan")
	}
	c.PointerMove(diagram.Pt(950, 80))
	if tr := c.Transform(); tr.X != 50 || tr.Y != 30 || tr.K != 1 {
		t.Errorf("Transform = %+v", tr)
	}
	c.PointerUp(diagram.Pt(950, 80))
	if c.Panning() {
		t.Error("PointerUp must end the pan")
	}

	// non-primary buttons do nothing
	c.PointerDown(diagram.Pt(900, 50), ButtonSecondary)
	if c.Panning() {
		t.Error("secondary button must not pan")
	}
}

func TestLinking(t *testing.T) {
	c := newController(t)
	a, _ := c.AddEntity("A", nil)
	b, _ := c.AddEntity("B", nil)

	if err := c.StartLink("missing"); err == nil {
		t.Error("StartLink on unknown entity should fail")
	}
	if err := c.StartLink(a.ID); err != nil {
		t.Fatal(err)
	}
	if r, err := c.Click(a.ID); r != nil || err != nil {
		t.Errorf("clicking the source must be a no-op, got %v %v", r, err)
	}
	if _, ok := c.Linking(); !ok {
		t.Fatal("still linking after clicking the source")
	}

	r, err := c.Click(b.ID)
	if err != nil || r == nil {
		t.Fatalf("Click = %v, %v", r, err)
	}
	if r.FromID != a.ID || r.ToID != b.ID || r.Cardinality != diagram.OneToMany {
		t.Errorf("relationship = %+v", r)
	}
	if _, ok := c.Linking(); ok {
		t.Error("linking should end after a link")
	}
	if got := len(c.Store().Model().Relationships); got != 1 {
		t.Errorf("relationships = %d", got)
	}
}

func TestLinkingByPointer(t *testing.T) {
	c := newController(t)
	a, _ := c.AddEntity("A", nil)
	b, _ := c.AddEntity("B", nil)
	c.Store().MoveEntity(b.ID, diagram.Pt(500, 300))

	c.StartLink(a.ID)
	r, err := c.PointerDown(diagram.Pt(600, 400), ButtonPrimary)
	if err != nil || r == nil || r.ToID != b.ID {
		t.Fatalf("PointerDown while linking = %v, %v", r, err)
	}
	if c.Dragging() != "" {
		t.Error("completing a link must not start a drag")
	}
}

func TestDeleteSourceCancelsLinking(t *testing.T) {
	c := newController(t)
	a, _ := c.AddEntity("A", nil)
	b, _ := c.AddEntity("B", nil)
	c.LinkSelf(b.ID)
	c.Click(b.ID)

	c.StartLink(a.ID)
	removed, err := c.DeleteEntity(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v", removed)
	}
	if _, ok := c.Linking(); ok {
		t.Error("deleting the link source must exit linking mode")
	}

	c.Select(b.ID)
	removed, err = c.DeleteSelected()
	if err != nil || len(removed) != 1 {
		t.Errorf("DeleteSelected = %v, %v", removed, err)
	}
	if c.Selected() != "" {
		t.Error("selection should clear after deleting the selected entity")
	}
	if _, err := c.DeleteSelected(); err == nil {
		t.Error("DeleteSelected with nothing selected should fail")
	}
}

func TestWheel(t *testing.T) {
	c := newController(t)
	a, _ := c.AddEntity("A", nil)

	c.Wheel(diagram.Pt(0, 0), 10, 20, false)
	if tr := c.Transform(); tr.X != -10 || tr.Y != -20 {
		t.Errorf("wheel pan = %+v", tr)
	}

	c.StartLink(a.ID)
	c.Wheel(diagram.Pt(0, 0), 10, 20, false)
	if tr := c.Transform(); tr.X != -10 || tr.Y != -20 {
		t.Error("wheel must not pan while linking")
	}

	p := diagram.Pt(320, 240)
	before := c.Transform().ScreenToWorld(p)
	c.Wheel(p, 0, -100, true)
	tr := c.Transform()
	if math.Abs(tr.K-1.1) > 1e-9 {
		t.Errorf("K = %v, want 1.1", tr.K)
	}
	after := tr.ScreenToWorld(p)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Errorf("point under cursor moved: %v -> %v", before, after)
	}
}

func TestZoomButtonsAndFit(t *testing.T) {
	c := newController(t)
	c.ZoomIn()
	if math.Abs(c.Transform().K-1.1) > 1e-9 {
		t.Errorf("ZoomIn K = %v", c.Transform().K)
	}
	c.ZoomOut()
	c.ZoomOut()
	if math.Abs(c.Transform().K-0.9) > 1e-9 {
		t.Errorf("ZoomOut K = %v", c.Transform().K)
	}

	c.Fit()
	if c.Transform() != viewport.Identity() {
		t.Errorf("Fit on empty canvas = %+v, want identity", c.Transform())
	}

	c.AddEntity("A", nil)
	c.Fit()
	want := viewport.FitToContent(c.Store().Model().Entities, geometry.DefaultMetrics(), c.Size(), false)
	if c.Transform() != want {
		t.Errorf("Fit = %+v, want %+v", c.Transform(), want)
	}
}

func TestSceneExportMode(t *testing.T) {
	c := newController(t)
	a, _ := c.AddEntity("A", []string{"x", "y", "z"})
	b, _ := c.AddEntity("B", nil)
	c.Store().MoveEntity(b.ID, diagram.Pt(600, 300))
	c.StartLink(a.ID)
	c.Click(b.ID)
	c.StartLink(b.ID)
	c.SetTransform(viewport.Transform{X: 40, Y: 40, K: 2})

	live := c.Scene(false)
	if live.Transform.K != 2 || live.Selected != b.ID || live.LinkSource != b.ID {
		t.Errorf("live scene = %+v", live)
	}
	cb, _ := live.Card(b.ID)
	if !cb.Selected || !cb.LinkSource {
		t.Errorf("card flags = %+v", cb)
	}

	exp := c.Scene(true)
	if exp.Transform != viewport.Identity() || exp.Selected != "" || exp.LinkSource != "" {
		t.Errorf("export scene kept chrome: %+v", exp)
	}
	ca, _ := exp.Card(a.ID)
	la, _ := live.Card(a.ID)
	if ca.Rect.Height() >= la.Rect.Height() {
		t.Errorf("export card should omit the form block: %v vs %v", ca.Rect.Height(), la.Rect.Height())
	}
	if len(exp.Links) != 1 {
		t.Fatalf("links = %d", len(exp.Links))
	}
	if _, ok := exp.Bounds(); !ok {
		t.Error("Bounds should be ok for a non-empty scene")
	}
}

func TestSelectNext(t *testing.T) {
	c := newController(t)
	if got := c.SelectNext(1); got != "" {
		t.Errorf("SelectNext on empty = %q", got)
	}
	a, _ := c.AddEntity("A", nil)
	b, _ := c.AddEntity("B", nil)
	if got := c.SelectNext(1); got != a.ID {
		t.Errorf("wrap forward = %q, want %q", got, a.ID)
	}
	if got := c.SelectNext(-1); got != b.ID {
		t.Errorf("wrap backward = %q, want %q", got, b.ID)
	}
}
