package render

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/matzehuels/ercanvas/pkg/canvas"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/observability"
)

// Format is an export format.
type Format string

const (
	FormatJSON       Format = "json"
	FormatText       Format = "txt"
	FormatSVG        Format = "svg"
	FormatPNG        Format = "png"
	FormatPDF        Format = "pdf"
	FormatDOT        Format = "dot"
	FormatGraphviz   Format = "graphviz"
	FormatDictionary Format = "csv"
	FormatMarkdown   Format = "md"
)

// Formats lists every export format.
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatSVG, FormatPNG, FormatPDF, FormatDOT, FormatGraphviz, FormatDictionary, FormatMarkdown}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatSVG, FormatGraphviz:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	case FormatDOT:
		return "text/vnd.graphviz; charset=utf-8"
	case FormatDictionary:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension of f, without the dot.
func (f Format) Extension() string {
	if f == FormatGraphviz {
		return "svg"
	}
	return string(f)
}

// Export renders m in format f. Visual formats use the export scene: natural
// scale, no interactive chrome.
func Export(ctx context.Context, m diagram.Model, metrics geometry.Metrics, f Format) (out []byte, err error) {
	start := time.Now()
	defer func() {
		observability.Render().OnRenderComplete(ctx, string(f), len(out), time.Since(start), err)
	}()

	switch f {
	case FormatJSON:
		return json.MarshalIndent(m, "", "  ")
	case FormatText:
		return []byte(PlainText(m)), nil
	case FormatSVG:
		return SVG(canvas.Build(m, metrics, true)), nil
	case FormatPNG:
		return PNG(canvas.Build(m, metrics, true))
	case FormatPDF:
		return ToPDF(ctx, SVG(canvas.Build(m, metrics, true)))
	case FormatDOT:
		return []byte(DOT(m)), nil
	case FormatGraphviz:
		return GraphvizSVG(ctx, DOT(m))
	case FormatDictionary:
		return DictionaryCSV(m)
	case FormatMarkdown:
		return []byte(DictionaryMarkdown(m)), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q", f)
}
