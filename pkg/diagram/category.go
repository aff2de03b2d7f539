package diagram

import (
	"strings"

	"github.com/matzehuels/ercanvas/pkg/errors"
)

// Category classifies an attribute.
type Category string

const (
	Identifier  Category = "identifier"
	Descriptive Category = "descriptive"
	Multivalued Category = "multivalued"
	Composite   Category = "composite"
	Referential Category = "referential"
)

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	Label  string // human label used in menus and the data dictionary
	Marker string // suffix drawn after the attribute name
	Color  string // hex colour of the category badge
}

var categoryInfo = map[Category]CategoryInfo{
	Identifier:  {Label: "Identifier", Marker: "(PK)", Color: "#d97706"},
	Descriptive: {Label: "Descriptive", Marker: "", Color: "#64748b"},
	Multivalued: {Label: "Multivalued", Marker: "[ ]", Color: "#9333ea"},
	Composite:   {Label: "Composite", Marker: "(...)", Color: "#4f46e5"},
	Referential: {Label: "Referential", Marker: "(FK)", Color: "#059669"},
}

// Categories lists every category in menu order.
func Categories() []Category {
	return []Category{Identifier, Descriptive, Multivalued, Composite, Referential}
}

// Info returns the display metadata of c. Unknown categories report the
// descriptive metadata.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return categoryInfo[Descriptive]
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// IsPK reports whether attributes of this category are primary keys.
func (c Category) IsPK() bool { return c == Identifier }

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errors.New(errors.ErrCodeInvalidCategory, "unknown attribute category %q", s)
	}
	return c, nil
}
