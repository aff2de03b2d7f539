package route

import (
	"fmt"
	"math"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
)

// Curve is a cubic Bezier segment.
type Curve struct {
	Start diagram.Point `json:"start"`
	C1    diagram.Point `json:"c1"`
	C2    diagram.Point `json:"c2"`
	End   diagram.Point `json:"end"`
}

// Path returns the SVG path data of the curve.
func (c Curve) Path() string {
	return fmt.Sprintf("M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f",
		c.Start.X, c.Start.Y, c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.End.X, c.End.Y)
}

// At evaluates the curve at parameter t in [0, 1].
func (c Curve) At(t float64) diagram.Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	d := 3 * u * t * t
	e := t * t * t
	return diagram.Pt(
		a*c.Start.X+b*c.C1.X+d*c.C2.X+e*c.End.X,
		a*c.Start.Y+b*c.C1.Y+d*c.C2.Y+e*c.End.Y,
	)
}

// Bounds returns the box of the control polygon, which always contains the
// curve.
func (c Curve) Bounds() geometry.Rect {
	r := geometry.Rect{Left: c.Start.X, Top: c.Start.Y, Right: c.Start.X, Bottom: c.Start.Y}
	return r.IncludePoint(c.C1).IncludePoint(c.C2).IncludePoint(c.End)
}

// Flatten approximates the curve with n+1 points.
func (c Curve) Flatten(n int) []diagram.Point {
	if n < 1 {
		n = 1
	}
	pts := make([]diagram.Point, n+1)
	for i := range pts {
		pts[i] = c.At(float64(i) / float64(n))
	}
	return pts
}

// Foot is a crow's-foot marker: three prongs fanning from Apex toward the card.
type Foot struct {
	Apex  diagram.Point    `json:"apex"`
	Tips  [3]diagram.Point `json:"tips"`
	Angle float64          `json:"angle"` // direction apex to card, in degrees
}

// Crow's-foot marker dimensions.
const (
	FootLength = 15
	FootSpread = 8
)

// newFoot builds a foot at apex pointing along dir. fallback is used when dir
// has zero length.
func newFoot(apex, dir, fallback diagram.Point) Foot {
	l := math.Hypot(dir.X, dir.Y)
	if l == 0 {
		dir, l = fallback, 1
	}
	u := dir.Scale(1 / l)
	v := diagram.Pt(-u.Y, u.X)
	base := apex.Add(u.Scale(FootLength))
	return Foot{
		Apex: apex,
		Tips: [3]diagram.Point{
			base.Add(v.Scale(-FootSpread)),
			base,
			base.Add(v.Scale(FootSpread)),
		},
		Angle: math.Atan2(u.Y, u.X) * 180 / math.Pi,
	}
}
