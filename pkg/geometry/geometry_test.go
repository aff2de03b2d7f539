package geometry

import (
	"math"
	"slices"
	"testing"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

func entity(id string, x, y float64, attrs int) diagram.Entity {
	e := diagram.Entity{ID: id, Name: id, Position: diagram.Pt(x, y)}
	for i := 0; i < attrs; i++ {
		e.Attributes = append(e.Attributes, diagram.NewAttribute("a"))
	}
	return e
}

func index(es ...diagram.Entity) map[string]diagram.Entity {
	m := make(map[string]diagram.Entity, len(es))
	for _, e := range es {
		m[e.ID] = e
	}
	return m
}

func TestCardHeight(t *testing.T) {
	m := DefaultMetrics()
	tests := []struct {
		name      string
		attrs     int
		collapsed bool
		export    bool
		want      float64
	}{
		{"empty interactive", 0, false, false, 4 + 37 + 12 + 40 + 12 + 57},
		{"empty export", 0, false, true, 4 + 37 + 12 + 40 + 12},
		{"one attribute floors at 40", 1, false, true, 4 + 37 + 12 + 40 + 12},
		{"two attributes", 2, false, true, 4 + 37 + 12 + 60 + 12},
		{"three attributes interactive", 3, false, false, 4 + 37 + 12 + 93 + 12 + 57},
		{"collapsed ignores attributes", 7, true, false, 41},
		{"collapsed export", 0, true, true, 41},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entity("e", 0, 0, tt.attrs)
			e.Collapsed = tt.collapsed
			if got := m.CardHeight(e, tt.export); got != tt.want {
				t.Errorf("CardHeight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCardHeightMonotonic(t *testing.T) {
	m := DefaultMetrics()
	for _, export := range []bool{false, true} {
		prev := -1.0
		for n := 0; n < 20; n++ {
			e := entity("e", 0, 0, n)
			h := m.CardHeight(e, export)
			if h < prev {
				t.Fatalf("CardHeight decreased at n=%d export=%v: %v < %v", n, export, h, prev)
			}
			prev = h

			e.Collapsed = true
			if hc := m.CardHeight(e, export); hc >= h {
				t.Fatalf("collapsed height %v not below expanded %v at n=%d", hc, h, n)
			}
		}
	}
}

func TestAnchorFace(t *testing.T) {
	m := DefaultMetrics()
	tests := []struct {
		name string
		src  diagram.Entity
		dst  diagram.Entity
		want Face
	}{
		{"right", entity("a", 0, 0, 0), entity("b", 300, 0, 0), Right},
		{"left", entity("a", 300, 0, 0), entity("b", 0, 0, 0), Left},
		{"below", entity("a", 0, 0, 0), entity("b", 0, 500, 0), Bottom},
		{"above", entity("a", 0, 500, 0), entity("b", 0, 0, 0), Top},
		{"bias keeps vertical", entity("a", 0, 0, 0), entity("b", 105, 100, 0), Bottom},
		{"bias exceeded", entity("a", 0, 0, 0), entity("b", 120, 100, 0), Right},
		{"coincident", entity("a", 0, 0, 0), entity("b", 0, 0, 0), Top},
		{"self", entity("a", 0, 0, 0), entity("a", 999, -50, 3), Right},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.AnchorFace(tt.src, tt.dst, false); got != tt.want {
				t.Errorf("AnchorFace() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnchorFaceUsesCardHeight(t *testing.T) {
	m := DefaultMetrics()
	// b sits level with a's top edge but a is much taller, so b's centre is
	// above a's centre by more than the horizontal delta allows.
	a := entity("a", 0, 0, 20)
	b := entity("b", 200, -200, 0)
	if got := m.AnchorFace(a, b, false); got != Top {
		t.Errorf("AnchorFace() = %v, want top", got)
	}
}

func TestSelfFacesIgnorePosition(t *testing.T) {
	m := DefaultMetrics()
	for _, pos := range []diagram.Point{{X: 0, Y: 0}, {X: -500, Y: 300}, {X: 1e6, Y: -1e6}} {
		e := entity("s", pos.X, pos.Y, 2)
		from, to := m.Faces(e, e, false)
		if from != Right || to != Top {
			t.Errorf("Faces(self at %v) = %v,%v, want right,top", pos, from, to)
		}
	}
}

func TestFanOffsetSymmetric(t *testing.T) {
	m := DefaultMetrics()
	for n := 1; n <= 6; n++ {
		sum := 0.0
		prev := math.Inf(-1)
		for i := 0; i < n; i++ {
			off := m.FanOffset(i, n)
			if off <= prev {
				t.Fatalf("n=%d: offset %d (%v) not greater than previous (%v)", n, i, off, prev)
			}
			prev = off
			sum += off
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("n=%d: offsets sum to %v, want 0", n, sum)
		}
	}
	if got := m.FanOffset(0, 1); got != 0 {
		t.Errorf("single member offset = %v, want 0", got)
	}
}

func TestFaceGroupTwoParallel(t *testing.T) {
	m := DefaultMetrics()
	a := entity("a", 0, 0, 0)
	b := entity("b", 300, 0, 0)
	ents := index(a, b)
	rels := []diagram.Relationship{
		{ID: "r2", FromID: "a", ToID: "b", Cardinality: diagram.OneToMany},
		{ID: "r1", FromID: "b", ToID: "a", Cardinality: diagram.OneToMany},
	}

	group := m.FaceGroup("a", Right, ents, rels, false)
	if !slices.Equal(group, []string{"r1", "r2"}) {
		t.Fatalf("FaceGroup(a, right) = %v, want [r1 r2]", group)
	}
	if got := m.Fan("a", Right, "r1", ents, rels, false); got != -10 {
		t.Errorf("Fan(r1) = %v, want -10", got)
	}
	if got := m.Fan("a", Right, "r2", ents, rels, false); got != 10 {
		t.Errorf("Fan(r2) = %v, want 10", got)
	}
	if got := m.FaceGroup("a", Left, ents, rels, false); len(got) != 0 {
		t.Errorf("FaceGroup(a, left) = %v, want empty", got)
	}
	if got := m.Fan("a", Left, "r1", ents, rels, false); got != 0 {
		t.Errorf("Fan on empty face = %v, want 0", got)
	}
}

func TestFaceGroupSelfRelationship(t *testing.T) {
	m := DefaultMetrics()
	a := entity("a", 0, 0, 0)
	b := entity("b", 400, 0, 0)
	ents := index(a, b)
	rels := []diagram.Relationship{
		{ID: "loop", FromID: "a", ToID: "a", Cardinality: diagram.OneToOne},
		{ID: "out", FromID: "a", ToID: "b", Cardinality: diagram.OneToOne},
	}

	if got := m.FaceGroup("a", Right, ents, rels, false); !slices.Equal(got, []string{"loop", "out"}) {
		t.Errorf("FaceGroup(a, right) = %v", got)
	}
	if got := m.FaceGroup("a", Top, ents, rels, false); !slices.Equal(got, []string{"loop"}) {
		t.Errorf("FaceGroup(a, top) = %v", got)
	}
	if got := m.FaceGroup("b", Left, ents, rels, false); !slices.Equal(got, []string{"out"}) {
		t.Errorf("FaceGroup(b, left) = %v", got)
	}
	if got := m.FaceGroup("zzz", Left, ents, rels, false); got != nil {
		t.Errorf("FaceGroup(unknown) = %v, want nil", got)
	}
}

func TestAnchor(t *testing.T) {
	m := DefaultMetrics()
	e := entity("e", 100, 50, 0) // interactive height 162
	tests := []struct {
		face      Face
		fan       float64
		clearance float64
		want      diagram.Point
	}{
		{Right, -10, 15, diagram.Pt(100+256+15, 50+81-10)},
		{Left, 10, 0, diagram.Pt(100, 50+81+10)},
		{Top, 5, 15, diagram.Pt(100+128+5, 50-15)},
		{Bottom, 0, 0, diagram.Pt(100+128, 50+162)},
	}

	for _, tt := range tests {
		t.Run(string(tt.face), func(t *testing.T) {
			if got := m.Anchor(e, tt.face, tt.fan, tt.clearance, false); got != tt.want {
				t.Errorf("Anchor() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := m.SelfInboundAnchor(e, 0, 15); got != diagram.Pt(100+256+15, 70) {
		t.Errorf("SelfInboundAnchor() = %v", got)
	}
}

func TestFaceNormal(t *testing.T) {
	for _, f := range []Face{Top, Right, Bottom, Left} {
		n := f.Normal()
		if math.Abs(n.X)+math.Abs(n.Y) != 1 {
			t.Errorf("%v normal %v is not a unit axis vector", f, n)
		}
		if f.Horizontal() != (n.Y == 0) {
			t.Errorf("%v Horizontal() inconsistent with normal %v", f, n)
		}
	}
}

func TestContentBounds(t *testing.T) {
	m := DefaultMetrics()
	if _, ok := m.ContentBounds(nil, true); ok {
		t.Error("ContentBounds(nil) should report false")
	}
	r, ok := m.ContentBounds([]diagram.Entity{entity("a", 0, 0, 0), entity("b", 400, 300, 0)}, true)
	if !ok {
		t.Fatal("ContentBounds should report true")
	}
	want := Rect{Left: 0, Top: 0, Right: 656, Bottom: 405}
	if r != want {
		t.Errorf("ContentBounds() = %+v, want %+v", r, want)
	}
}

func TestWithDefaults(t *testing.T) {
	m := Metrics{CardWidth: 300}.WithDefaults()
	if m.CardWidth != 300 {
		t.Errorf("CardWidth overridden: %v", m.CardWidth)
	}
	if m.FaceBias != DefaultFaceBias || m.FormBlockHeight != 57 {
		t.Errorf("defaults not filled: %+v", m)
	}
}

func TestRect(t *testing.T) {
	r := Rect{Left: 0, Top: 0, Right: 10, Bottom: 20}
	if r.Width() != 10 || r.Height() != 20 {
		t.Errorf("size = %vx%v", r.Width(), r.Height())
	}
	if r.Center() != diagram.Pt(5, 10) {
		t.Errorf("Center() = %v", r.Center())
	}
	if !r.Contains(diagram.Pt(10, 20)) || r.Contains(diagram.Pt(11, 0)) {
		t.Error("Contains() wrong at edges")
	}
	if got := r.Expand(5); got != (Rect{Left: -5, Top: -5, Right: 15, Bottom: 25}) {
		t.Errorf("Expand() = %+v", got)
	}
	if got := r.IncludePoint(diagram.Pt(-3, 30)); got != (Rect{Left: -3, Top: 0, Right: 10, Bottom: 30}) {
		t.Errorf("IncludePoint() = %+v", got)
	}
}
