// Package route computes relationship curves between entity cards.
//
// Routing is a pure function of the current entities and relationships: the
// face each end attaches to, its fan offset among siblings on that face, the
// crow's-foot clearance and the user's manual offset. Nothing is cached; call
// [Router.RouteAll] again after every change.
package route

import (
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
)

// Label pill dimensions.
const (
	LabelMinWidth  = 44
	LabelCharWidth = 7
	LabelPadding   = 16
	LabelHeight    = 22
	LabelDrop      = 14 // pill top sits this far below the midpoint
)

// Route is the routed geometry of one relationship.
type Route struct {
	RelationshipID string              `json:"relationshipId"`
	FromID         string              `json:"fromId"`
	ToID           string              `json:"toId"`
	Cardinality    diagram.Cardinality `json:"cardinality"`
	FaceFrom       geometry.Face       `json:"faceFrom"`
	FaceTo         geometry.Face       `json:"faceTo"`
	OffsetFrom     float64             `json:"offsetFrom"`
	OffsetTo       float64             `json:"offsetTo"`
	Curve          Curve               `json:"curve"`
	Mid            diagram.Point       `json:"mid"`
	Label          string              `json:"label"`
	LabelWidth     float64             `json:"labelWidth"`
	Self           bool                `json:"self"`
	Feet           []Foot              `json:"feet,omitempty"`
}

// LabelRect returns the box of the label pill below the midpoint.
func (r Route) LabelRect() geometry.Rect {
	return geometry.Rect{
		Left:   r.Mid.X - r.LabelWidth/2,
		Top:    r.Mid.Y + LabelDrop,
		Right:  r.Mid.X + r.LabelWidth/2,
		Bottom: r.Mid.Y + LabelDrop + LabelHeight,
	}
}

// Bounds returns the box covering the curve, the feet and the label.
func (r Route) Bounds() geometry.Rect {
	b := r.Curve.Bounds().Union(r.LabelRect())
	for _, f := range r.Feet {
		for _, p := range f.Tips {
			b = b.IncludePoint(p)
		}
	}
	return b
}

// LabelText returns "name (card)" for named relationships and the bare
// cardinality otherwise.
func LabelText(rel diagram.Relationship) string { return rel.Label() }

// LabelWidth returns the pill width for text.
func LabelWidth(text string) float64 {
	return max(LabelMinWidth, float64(len([]rune(text)))*LabelCharWidth+LabelPadding)
}

// Router routes relationships with a fixed set of metrics.
type Router struct {
	Metrics geometry.Metrics
}

// NewRouter returns a router using m, with zero fields defaulted.
func NewRouter(m geometry.Metrics) Router {
	return Router{Metrics: m.WithDefaults()}
}

// Route computes the curve of rel between from and to. entities and rels are
// the full diagram and determine fan offsets.
func (rt Router) Route(rel diagram.Relationship, from, to diagram.Entity, entities map[string]diagram.Entity, rels []diagram.Relationship, exportMode bool) Route {
	m := rt.Metrics
	self := from.ID == to.ID
	faceFrom, faceTo := m.Faces(from, to, exportMode)

	offFrom := m.Fan(from.ID, faceFrom, rel.ID, entities, rels, exportMode)
	offTo := m.Fan(to.ID, faceTo, rel.ID, entities, rels, exportMode)

	clearFrom, clearTo := 0.0, 0.0
	if rel.Cardinality.CrowAtFrom() {
		clearFrom = m.CrowfootClearance
	}
	if rel.Cardinality.CrowAtTo() {
		clearTo = m.CrowfootClearance
	}

	p1 := m.Anchor(from, faceFrom, offFrom, clearFrom, exportMode)
	var p2 diagram.Point
	if self {
		p2 = m.SelfInboundAnchor(to, offTo, clearTo)
	} else {
		p2 = m.Anchor(to, faceTo, offTo, clearTo, exportMode)
	}

	user := rel.ControlOffset
	var c1, c2, mid diagram.Point
	if self {
		c1 = p1.Add(diagram.Pt(m.SelfLoopReach, 0)).Add(user)
		c2 = p1.Add(diagram.Pt(m.SelfLoopReach, -m.SelfLoopRise)).Add(user)
		mid = p1.Add(diagram.Pt(m.SelfLoopReach, -m.SelfLabelRise)).Add(user)
	} else {
		c1 = p1.Add(faceFrom.Normal().Scale(m.Curvature)).Add(user)
		c2 = p2.Add(faceTo.Normal().Scale(m.Curvature)).Add(user)
		mid = diagram.Pt((p1.X+p2.X)/2, (p1.Y+p2.Y)/2).Add(user)
	}

	curve := Curve{Start: p1, C1: c1, C2: c2, End: p2}
	label := LabelText(rel)
	out := Route{
		RelationshipID: rel.ID,
		FromID:         rel.FromID,
		ToID:           rel.ToID,
		Cardinality:    rel.Cardinality,
		FaceFrom:       faceFrom,
		FaceTo:         faceTo,
		OffsetFrom:     offFrom,
		OffsetTo:       offTo,
		Curve:          curve,
		Mid:            mid,
		Label:          label,
		LabelWidth:     LabelWidth(label),
		Self:           self,
	}
	// Feet point from the curve end into the card.
	if rel.Cardinality.CrowAtFrom() {
		out.Feet = append(out.Feet, newFoot(p1, p1.Sub(c1), faceFrom.Normal().Scale(-1)))
	}
	if rel.Cardinality.CrowAtTo() {
		inward := faceTo.Normal().Scale(-1)
		if self {
			inward = geometry.Right.Normal().Scale(-1)
		}
		out.Feet = append(out.Feet, newFoot(p2, p2.Sub(c2), inward))
	}
	return out
}

// RouteAll routes every relationship of m in order. Relationships whose
// endpoints are missing are skipped.
func (rt Router) RouteAll(m diagram.Model, exportMode bool) []Route {
	entities := m.EntityIndex()
	out := make([]Route, 0, len(m.Relationships))
	for _, rel := range m.Relationships {
		from, ok := entities[rel.FromID]
		if !ok {
			continue
		}
		to, ok := entities[rel.ToID]
		if !ok {
			continue
		}
		out = append(out, rt.Route(rel, from, to, entities, m.Relationships, exportMode))
	}
	return out
}
