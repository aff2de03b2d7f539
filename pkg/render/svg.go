package render

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/ercanvas/pkg/canvas"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/route"
)

// SVGOption configures SVG rendering.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	margin     float64
	background string
}

// WithMargin sets the export margin around the content.
func WithMargin(m float64) SVGOption { return func(r *svgRenderer) { r.margin = m } }

// WithBackground sets the background fill. An empty string means transparent.
func WithBackground(c string) SVGOption { return func(r *svgRenderer) { r.background = c } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{margin: ExportMargin, background: ColorBackground}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// frame returns the viewBox of a scene. Export scenes and scenes without a
// viewport size are cropped to their content plus margin; live scenes show
// the viewport.
func frame(s canvas.Scene, margin float64) geometry.Rect {
	if !s.ExportMode && s.Size.Width > 0 && s.Size.Height > 0 {
		return geometry.Rect{Right: s.Size.Width, Bottom: s.Size.Height}
	}
	b, ok := s.Bounds()
	if !ok {
		return geometry.Rect{Right: 2 * margin, Bottom: 2 * margin}
	}
	return b.Expand(margin)
}

// SVG renders s. In export mode the scene is drawn at natural scale, cropped
// to its content, without selection highlights or editing affordances.
func SVG(s canvas.Scene, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	vb := frame(s, r.margin)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.1f %.1f %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		vb.Left, vb.Top, vb.Width(), vb.Height(), vb.Width(), vb.Height())
	if r.background != "" {
		fmt.Fprintf(&buf, `  <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`+"\n",
			vb.Left, vb.Top, vb.Width(), vb.Height(), r.background)
	}

	live := !s.ExportMode && s.Size.Width > 0 && s.Size.Height > 0
	if live {
		fmt.Fprintf(&buf, `  <g transform="translate(%.1f %.1f) scale(%.3f)">`+"\n", s.Transform.X, s.Transform.Y, s.Transform.K)
	} else {
		buf.WriteString("  <g>\n")
	}
	for _, l := range s.Links {
		renderLink(&buf, l, s.ExportMode)
	}
	for _, c := range s.Cards {
		renderCard(&buf, c, s.Metrics, s.ExportMode)
	}
	buf.WriteString("  </g>\n")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderLink(buf *bytes.Buffer, l route.Route, exportMode bool) {
	fmt.Fprintf(buf, `    <g class="relationship" id="rel-%s">`+"\n", EscapeXML(l.RelationshipID))
	fmt.Fprintf(buf, `      <path d="%s" fill="none" stroke="%s" stroke-width="%.1f"/>`+"\n", l.Curve.Path(), ColorLine, LineWidth)
	for _, f := range l.Feet {
		fmt.Fprintf(buf, `      <path class="crowfoot" d="M %s %s L %s %s M %s %s L %s %s M %s %s L %s %s" fill="none" stroke="%s" stroke-width="%d" stroke-linecap="round"/>`+"\n",
			f1(f.Apex.X), f1(f.Apex.Y), f1(f.Tips[0].X), f1(f.Tips[0].Y),
			f1(f.Apex.X), f1(f.Apex.Y), f1(f.Tips[1].X), f1(f.Tips[1].Y),
			f1(f.Apex.X), f1(f.Apex.Y), f1(f.Tips[2].X), f1(f.Tips[2].Y),
			ColorFoot, FootWidth)
	}
	if !exportMode {
		fmt.Fprintf(buf, `      <circle class="delete" cx="%.1f" cy="%.1f" r="10" fill="#ffffff" stroke="%s"/>`+"\n", l.Mid.X, l.Mid.Y-10, ColorDeleteStroke)
		fmt.Fprintf(buf, `      <text class="delete" x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-family="%s" font-size="12" fill="%s">×</text>`+"\n",
			l.Mid.X, l.Mid.Y-10, FontFamily, ColorDeleteText)
	}
	lr := l.LabelRect()
	fmt.Fprintf(buf, `      <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="11" fill="%s" stroke="%s" stroke-width="1"/>`+"\n",
		lr.Left, lr.Top, lr.Width(), lr.Height(), ColorLabelFill, ColorLabelStroke)
	fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-family="%s" font-size="%d" font-weight="900" fill="%s">%s</text>`+"\n",
		lr.CenterX(), lr.CenterY(), FontFamily, LabelFontSize, ColorLabelText, EscapeXML(upper(l.Label)))
	buf.WriteString("    </g>\n")
}

func renderCard(buf *bytes.Buffer, c canvas.Card, m geometry.Metrics, exportMode bool) {
	e := c.Entity
	r := c.Rect
	stroke := ColorCardStroke
	if !exportMode {
		switch {
		case c.LinkSource:
			stroke = ColorLinkSource
		case c.Selected:
			stroke = ColorSelected
		}
	}

	fmt.Fprintf(buf, `    <g class="entity" id="entity-%s">`+"\n", EscapeXML(e.ID))
	fmt.Fprintf(buf, `      <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%d" fill="%s" stroke="%s" stroke-width="%.1f"/>`+"\n",
		r.Left, r.Top, r.Width(), r.Height(), CardRadius, ColorCardFill, stroke, m.BorderWidth)

	h := c.Header
	fmt.Fprintf(buf, `      <path d="%s" fill="%s"/>`+"\n", headerPath(h, e.Collapsed), ColorHeaderFill)
	fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" dominant-baseline="middle" font-family="%s" font-size="%d" font-weight="bold" fill="%s">%s</text>`+"\n",
		h.Left+TextInset, h.CenterY(), FontFamily, HeaderFontSize, ColorHeaderText, EscapeXML(truncate(e.Name, 30)))

	if !e.Collapsed {
		for i, a := range e.Attributes {
			renderAttribute(buf, a, r, m.AttributeRowTop(i), m.RowHeight)
		}
		if !exportMode {
			formTop := r.Bottom - m.BorderWidth - m.FormBlockHeight
			fmt.Fprintf(buf, `      <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`+"\n",
				r.Left+TextInset, formTop+12, r.Right-TextInset, formTop+12, ColorDivider)
			fmt.Fprintf(buf, `      <rect class="add-attribute" x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="8" fill="#f8fafc" stroke="%s"/>`+"\n",
				r.Left+TextInset, formTop+25, r.Width()-2*TextInset, m.FormBlockHeight-25-4, ColorDivider)
			fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" dominant-baseline="middle" font-family="%s" font-size="%d" fill="%s">+ new attribute</text>`+"\n",
				r.Left+2*TextInset, formTop+25+(m.FormBlockHeight-29)/2, FontFamily, AttrFontSize, ColorMuted)
		}
	}
	buf.WriteString("    </g>\n")
}

func renderAttribute(buf *bytes.Buffer, a diagram.Attribute, card geometry.Rect, rowTop, rowHeight float64) {
	info := a.EffectiveCategory().Info()
	cy := card.Top + rowTop + rowHeight/2
	fmt.Fprintf(buf, `      <circle cx="%.1f" cy="%.1f" r="%d" fill="%s"/>`+"\n", card.Left+TextInset+6, cy, DotRadius, info.Color)
	deco := ""
	if a.PK {
		deco = ` text-decoration="underline" font-weight="bold"`
	}
	fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" dominant-baseline="middle" font-family="%s" font-size="%d" fill="%s"%s>%s</text>`+"\n",
		card.Left+AttrTextInset, cy, FontFamily, AttrFontSize, ColorAttrText, deco, EscapeXML(truncate(a.Name, 28)))
	if info.Marker != "" {
		fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" text-anchor="end" dominant-baseline="middle" font-family="%s" font-size="%d" font-weight="bold" fill="%s">%s</text>`+"\n",
			card.Right-TextInset, cy, FontFamily, LabelFontSize, info.Color, EscapeXML(info.Marker))
	}
}

// headerPath draws the header strip with rounded top corners, and rounded
// bottom corners too when the card is collapsed.
func headerPath(h geometry.Rect, collapsed bool) string {
	rr := float64(CardRadius)
	br := 0.0
	if collapsed {
		br = rr
	}
	return fmt.Sprintf("M %s %s L %s %s Q %s %s %s %s L %s %s Q %s %s %s %s L %s %s Q %s %s %s %s L %s %s Q %s %s %s %s Z",
		f1(h.Left+rr), f1(h.Top),
		f1(h.Right-rr), f1(h.Top),
		f1(h.Right), f1(h.Top), f1(h.Right), f1(h.Top+rr),
		f1(h.Right), f1(h.Bottom-br),
		f1(h.Right), f1(h.Bottom), f1(h.Right-br), f1(h.Bottom),
		f1(h.Left+br), f1(h.Bottom),
		f1(h.Left), f1(h.Bottom), f1(h.Left), f1(h.Bottom-br),
		f1(h.Left), f1(h.Top+rr),
		f1(h.Left), f1(h.Top), f1(h.Left+rr), f1(h.Top),
	)
}
