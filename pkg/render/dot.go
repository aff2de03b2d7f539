package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

// DOT converts a model to Graphviz DOT. Entities become HTML-like tables and
// relationships become edges with crow's-foot arrowheads on their "many" ends.
// The layout is left to Graphviz; canvas positions are ignored.
func DOT(m diagram.Model) string {
	var buf bytes.Buffer
	buf.WriteString("digraph ER {\n")
	buf.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", ColorBackground)
	buf.WriteString("  node [shape=plaintext, fontname=\"Helvetica\"];\n")
	fmt.Fprintf(&buf, "  edge [fontname=\"Helvetica\", fontsize=10, color=%q, dir=both];\n", ColorLine)
	buf.WriteString("  nodesep=0.6;\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("\n")

	for _, e := range m.Entities {
		fmt.Fprintf(&buf, "  %q [label=<%s>];\n", e.ID, entityTable(e))
	}

	buf.WriteString("\n")
	for _, r := range m.Relationships {
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", r.FromID, r.ToID, strings.Join(edgeAttrs(r), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func entityTable(e diagram.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<table border="1" cellborder="0" cellspacing="0" cellpadding="6" bgcolor="%s" color="%s">`, ColorCardFill, ColorCardStroke)
	fmt.Fprintf(&b, `<tr><td bgcolor="%s" align="left"><font color="%s"><b>%s</b></font></td></tr>`,
		ColorHeaderFill, ColorHeaderText, EscapeXML(e.Name))
	if !e.Collapsed {
		for _, a := range e.Attributes {
			info := a.EffectiveCategory().Info()
			name := EscapeXML(a.Name)
			if a.PK {
				name = "<u>" + name + "</u>"
			}
			marker := ""
			if info.Marker != "" {
				marker = fmt.Sprintf(` <font color="%s">%s</font>`, info.Color, EscapeXML(info.Marker))
			}
			fmt.Fprintf(&b, `<tr><td align="left">%s%s</td></tr>`, name, marker)
		}
	}
	b.WriteString("</table>")
	return b.String()
}

func edgeAttrs(r diagram.Relationship) []string {
	tail, head := "tee", "tee"
	if r.Cardinality.CrowAtFrom() {
		tail = "crow"
	}
	if r.Cardinality.CrowAtTo() {
		head = "crow"
	}
	return []string{
		fmt.Sprintf("label=%q", r.Label()),
		fmt.Sprintf("arrowtail=%s", tail),
		fmt.Sprintf("arrowhead=%s", head),
	}
}

// GraphvizSVG lays out a DOT graph with Graphviz and renders it to SVG.
func GraphvizSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// width and height match the viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
