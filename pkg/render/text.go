package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

// PlainText renders the case study followed by one line per entity listing
// its attribute names, primary keys marked "(PK)".
func PlainText(m diagram.Model) string {
	var b strings.Builder
	b.WriteString("CASE STUDY:\n")
	b.WriteString(m.CaseStudy)
	b.WriteString("\n\nENTITIES:\n")
	for _, e := range m.Entities {
		names := make([]string, len(e.Attributes))
		for i, a := range e.Attributes {
			names[i] = a.Name
			if a.PK {
				names[i] += "(PK)"
			}
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, strings.Join(names, ", "))
	}
	return b.String()
}

// DictionaryRow is one attribute in the data dictionary.
type DictionaryRow struct {
	Entity    string           `json:"entity"`
	Attribute string           `json:"attribute"`
	Category  diagram.Category `json:"category"`
	Label     string           `json:"label"`
	PK        bool             `json:"pk"`
}

// DataDictionary lists every attribute of every entity in diagram order.
func DataDictionary(m diagram.Model) []DictionaryRow {
	rows := make([]DictionaryRow, 0, m.AttributeCount())
	for _, e := range m.Entities {
		for _, a := range e.Attributes {
			c := a.EffectiveCategory()
			rows = append(rows, DictionaryRow{
				Entity:    e.Name,
				Attribute: a.Name,
				Category:  c,
				Label:     c.Info().Label,
				PK:        a.PK,
			})
		}
	}
	return rows
}

var dictionaryHeader = []string{"Entity", "Attribute", "Category", "PK"}

// DictionaryCSV renders the data dictionary as CSV with a header row.
func DictionaryCSV(m diagram.Model) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(dictionaryHeader); err != nil {
		return nil, err
	}
	for _, r := range DataDictionary(m) {
		if err := w.Write([]string{r.Entity, r.Attribute, r.Label, yesNo(r.PK)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DictionaryMarkdown renders the data dictionary as a Markdown table.
func DictionaryMarkdown(m diagram.Model) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(dictionaryHeader, " | ") + " |\n")
	b.WriteString("|---|---|---|:-:|\n")
	rows := DataDictionary(m)
	if len(rows) == 0 {
		b.WriteString("| _no entities modeled yet_ | | | |\n")
	}
	for _, r := range rows {
		pk := ""
		if r.PK {
			pk = "✓"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mdEscape(r.Entity), mdEscape(r.Attribute), r.Label, pk)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func mdEscape(s string) string { return strings.ReplaceAll(s, "|", `\|`) }
