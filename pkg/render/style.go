package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Palette shared by the SVG and PNG renderers.
const (
	ColorBackground   = "#f1f5f9"
	ColorCardFill     = "#ffffff"
	ColorCardStroke   = "#cbd5e1"
	ColorSelected     = "#3b82f6"
	ColorLinkSource   = "#f59e0b"
	ColorHeaderFill   = "#1e293b"
	ColorHeaderText   = "#ffffff"
	ColorAttrText     = "#334155"
	ColorMuted        = "#94a3b8"
	ColorDivider      = "#e2e8f0"
	ColorLine         = "#64748b"
	ColorFoot         = "#475569"
	ColorLabelFill    = "#ffffff"
	ColorLabelStroke  = "#e2e8f0"
	ColorLabelText    = "#475569"
	ColorDeleteStroke = "#fecaca"
	ColorDeleteText   = "#ef4444"
)

// Typography.
const (
	FontFamily     = "Inter, Helvetica, Arial, sans-serif"
	HeaderFontSize = 14
	AttrFontSize   = 12
	LabelFontSize  = 10
	CardRadius     = 12
	LineWidth      = 1.5
	FootWidth      = 2
	DotRadius      = 4
	TextInset      = 12
	AttrTextInset  = 30
	ExportMargin   = 40
)

// EscapeXML escapes s for use in SVG text and attribute values.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }

func upper(s string) string { return strings.ToUpper(s) }

// truncate shortens s to maxChars runes, marking the cut with "..".
func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars-2]) + ".."
}
