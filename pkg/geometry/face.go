package geometry

import (
	"math"
	"slices"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

// Face is one of the four edges of a card.
type Face string

const (
	Top    Face = "top"
	Right  Face = "right"
	Bottom Face = "bottom"
	Left   Face = "left"
)

// Horizontal reports whether curves leave the face horizontally.
func (f Face) Horizontal() bool { return f == Left || f == Right }

// Normal returns the outward unit normal of the face.
func (f Face) Normal() diagram.Point {
	switch f {
	case Right:
		return diagram.Pt(1, 0)
	case Left:
		return diagram.Pt(-1, 0)
	case Top:
		return diagram.Pt(0, -1)
	default:
		return diagram.Pt(0, 1)
	}
}

// SelfFaces is the fixed (out, in) face pair of a self-relationship.
var SelfFaces = [2]Face{Right, Top}

// AnchorFace returns the face of src that a curve toward dst leaves from.
// Horizontal faces win unless the vertical delta is within FaceBias of the
// horizontal one. A self pair returns Right.
func (m Metrics) AnchorFace(src, dst diagram.Entity, exportMode bool) Face {
	if src.ID == dst.ID {
		return SelfFaces[0]
	}
	c1 := m.Center(src, exportMode)
	c2 := m.Center(dst, exportMode)
	dx := c2.X - c1.X
	dy := c2.Y - c1.Y
	if math.Abs(dx) > math.Abs(dy)*m.FaceBias {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Bottom
	}
	return Top
}

// Faces returns the (from, to) face pair of a relationship between from and to.
func (m Metrics) Faces(from, to diagram.Entity, exportMode bool) (Face, Face) {
	if from.ID == to.ID {
		return SelfFaces[0], SelfFaces[1]
	}
	return m.AnchorFace(from, to, exportMode), m.AnchorFace(to, from, exportMode)
}

// endpointFaces returns the faces rel occupies on entity, or nil when rel
// does not touch it or references a missing entity.
func (m Metrics) endpointFaces(rel diagram.Relationship, entity diagram.Entity, entities map[string]diagram.Entity, exportMode bool) []Face {
	switch {
	case rel.IsSelf() && rel.FromID == entity.ID:
		return SelfFaces[:]
	case rel.FromID == entity.ID:
		other, ok := entities[rel.ToID]
		if !ok {
			return nil
		}
		return []Face{m.AnchorFace(entity, other, exportMode)}
	case rel.ToID == entity.ID:
		other, ok := entities[rel.FromID]
		if !ok {
			return nil
		}
		return []Face{m.AnchorFace(entity, other, exportMode)}
	}
	return nil
}

// FaceGroup returns the ids of every relationship that lands on the given face
// of entityID, incoming or outgoing, sorted by id.
func (m Metrics) FaceGroup(entityID string, face Face, entities map[string]diagram.Entity, rels []diagram.Relationship, exportMode bool) []string {
	entity, ok := entities[entityID]
	if !ok {
		return nil
	}
	var ids []string
	for _, r := range rels {
		if slices.Contains(m.endpointFaces(r, entity, entities, exportMode), face) {
			ids = append(ids, r.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// FanOffset returns the lateral shift of the index-th member of a fan group
// of count members, centred on zero.
func (m Metrics) FanOffset(index, count int) float64 {
	return (float64(index) - float64(count-1)/2) * m.FanSpacing
}

// Fan returns relID's lateral offset on the given face of entityID. A
// relationship that is not in the group gets zero.
func (m Metrics) Fan(entityID string, face Face, relID string, entities map[string]diagram.Entity, rels []diagram.Relationship, exportMode bool) float64 {
	group := m.FaceGroup(entityID, face, entities, rels, exportMode)
	i := slices.Index(group, relID)
	if i < 0 {
		return 0
	}
	return m.FanOffset(i, len(group))
}

// Anchor returns the attachment point on face of e, shifted laterally by fan
// and pushed outward by clearance.
func (m Metrics) Anchor(e diagram.Entity, face Face, fan, clearance float64, exportMode bool) diagram.Point {
	r := m.CardRect(e, exportMode)
	switch face {
	case Right:
		return diagram.Pt(r.Right+clearance, r.CenterY()+fan)
	case Left:
		return diagram.Pt(r.Left-clearance, r.CenterY()+fan)
	case Top:
		return diagram.Pt(r.CenterX()+fan, r.Top-clearance)
	default:
		return diagram.Pt(r.CenterX()+fan, r.Bottom+clearance)
	}
}

// SelfInboundAnchor returns the inbound end of a self-loop: on the right edge,
// SelfAnchorDrop below the card top.
func (m Metrics) SelfInboundAnchor(e diagram.Entity, fan, clearance float64) diagram.Point {
	return diagram.Pt(e.Position.X+m.CardWidth+clearance, e.Position.Y+m.SelfAnchorDrop+fan)
}
