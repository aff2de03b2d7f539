package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/matzehuels/ercanvas/pkg/canvas"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/fonts"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/route"
)

// PNGOption configures PNG rendering.
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	scale  float64
	margin float64
}

// WithScale sets the pixel scale factor (default 2.0 for 2x resolution).
// The diagram itself is always drawn at its natural, unzoomed scale.
func WithScale(s float64) PNGOption {
	return func(r *pngRenderer) {
		if s > 0 {
			r.scale = s
		}
	}
}

// WithPNGMargin sets the margin around the content in world units.
func WithPNGMargin(m float64) PNGOption { return func(r *pngRenderer) { r.margin = m } }

const (
	// MaxPNGPixels caps the raster size. Larger diagrams are drawn at a
	// reduced scale.
	MaxPNGPixels = 16 << 20

	// MinPNGScale is the smallest scale PNG will reduce to before giving up.
	MinPNGScale = 0.1
)

// fitScale lowers scale until vb fits in MaxPNGPixels, counting the pixel
// that rounding may add on each axis.
func fitScale(vb geometry.Rect, scale float64) (float64, error) {
	w, h := vb.Width(), vb.Height()
	if (w*scale+1)*(h*scale+1) <= MaxPNGPixels {
		return scale, nil
	}
	// largest s with (w*s+1)(h*s+1) <= MaxPNGPixels
	a, b, c := w*h, w+h, 1-float64(MaxPNGPixels)
	fit := (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	if math.IsNaN(fit) || math.IsInf(fit, 0) || fit < MinPNGScale {
		return 0, errors.New(errors.ErrCodeInvalidInput,
			"diagram spans %.0fx%.0f units, too large for PNG export", w, h)
	}
	return fit, nil
}

var (
	regular = fonts.Regular
	bold    = fonts.Bold
)

func face(w fonts.Weight, size float64) font.Face { return fonts.MustFace(w, size) }

// PNG rasterizes s cropped to its content. Selection and editing chrome are
// never drawn.
func PNG(s canvas.Scene, opts ...PNGOption) ([]byte, error) {
	r := pngRenderer{scale: 2.0, margin: ExportMargin}
	for _, opt := range opts {
		opt(&r)
	}
	if err := fonts.Load(); err != nil {
		return nil, err
	}

	vb, ok := s.Bounds()
	if !ok {
		vb = geometry.Rect{}
	}
	vb = vb.Expand(r.margin)
	scale, err := fitScale(vb, r.scale)
	if err != nil {
		return nil, err
	}
	w := max(1, int(vb.Width()*scale+0.5))
	h := max(1, int(vb.Height()*scale+0.5))

	dc := gg.NewContext(w, h)
	dc.SetHexColor(ColorBackground)
	dc.Clear()
	dc.Scale(scale, scale)
	dc.Translate(-vb.Left, -vb.Top)

	for _, l := range s.Links {
		drawLink(dc, l)
	}
	for _, c := range s.Cards {
		drawCard(dc, c, s.Metrics)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLink(dc *gg.Context, l route.Route) {
	c := l.Curve
	dc.SetHexColor(ColorLine)
	dc.SetLineWidth(LineWidth)
	dc.MoveTo(c.Start.X, c.Start.Y)
	dc.CubicTo(c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.End.X, c.End.Y)
	dc.Stroke()

	dc.SetHexColor(ColorFoot)
	dc.SetLineWidth(FootWidth)
	dc.SetLineCapRound()
	for _, f := range l.Feet {
		for _, tip := range f.Tips {
			dc.DrawLine(f.Apex.X, f.Apex.Y, tip.X, tip.Y)
			dc.Stroke()
		}
	}

	lr := l.LabelRect()
	dc.DrawRoundedRectangle(lr.Left, lr.Top, lr.Width(), lr.Height(), lr.Height()/2)
	dc.SetHexColor(ColorLabelFill)
	dc.FillPreserve()
	dc.SetHexColor(ColorLabelStroke)
	dc.SetLineWidth(1)
	dc.Stroke()
	dc.SetFontFace(face(bold, LabelFontSize))
	dc.SetHexColor(ColorLabelText)
	dc.DrawStringAnchored(upper(l.Label), lr.CenterX(), lr.CenterY(), 0.5, 0.35)
}

func drawCard(dc *gg.Context, c canvas.Card, m geometry.Metrics) {
	r := c.Rect
	dc.DrawRoundedRectangle(r.Left, r.Top, r.Width(), r.Height(), CardRadius)
	dc.SetHexColor(ColorCardFill)
	dc.FillPreserve()
	dc.SetHexColor(ColorCardStroke)
	dc.SetLineWidth(m.BorderWidth)
	dc.Stroke()

	h := c.Header
	dc.DrawRoundedRectangle(h.Left, h.Top, h.Width(), h.Height(), CardRadius)
	if !c.Entity.Collapsed {
		// square off the bottom corners
		dc.DrawRectangle(h.Left, h.Bottom-CardRadius, h.Width(), CardRadius)
	}
	dc.SetHexColor(ColorHeaderFill)
	dc.Fill()

	dc.SetFontFace(face(bold, HeaderFontSize))
	dc.SetHexColor(ColorHeaderText)
	dc.DrawStringAnchored(truncate(c.Entity.Name, 30), h.Left+TextInset, h.CenterY(), 0, 0.35)

	if c.Entity.Collapsed {
		return
	}
	for i, a := range c.Entity.Attributes {
		drawAttribute(dc, a, r, r.Top+m.AttributeRowTop(i)+m.RowHeight/2)
	}
}

func drawAttribute(dc *gg.Context, a diagram.Attribute, card geometry.Rect, cy float64) {
	info := a.EffectiveCategory().Info()
	dc.DrawCircle(card.Left+TextInset+6, cy, DotRadius)
	dc.SetHexColor(info.Color)
	dc.Fill()

	name := truncate(a.Name, 28)
	x := card.Left + AttrTextInset
	if a.PK {
		dc.SetFontFace(face(bold, AttrFontSize))
	} else {
		dc.SetFontFace(face(regular, AttrFontSize))
	}
	dc.SetHexColor(ColorAttrText)
	dc.DrawStringAnchored(name, x, cy, 0, 0.35)
	if a.PK {
		tw, _ := dc.MeasureString(name)
		dc.SetLineWidth(1)
		dc.DrawLine(x, cy+AttrFontSize/2+1, x+tw, cy+AttrFontSize/2+1)
		dc.Stroke()
	}

	if info.Marker != "" {
		dc.SetFontFace(face(bold, LabelFontSize))
		dc.SetHexColor(info.Color)
		dc.DrawStringAnchored(info.Marker, card.Right-TextInset, cy, 1, 0.35)
	}
}
