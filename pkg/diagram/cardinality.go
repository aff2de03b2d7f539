package diagram

import (
	"strings"

	"github.com/matzehuels/ercanvas/pkg/errors"
)

// Cardinality is the multiplicity of a relationship.
type Cardinality string

const (
	OneToOne   Cardinality = "1:1"
	OneToMany  Cardinality = "1:N"
	ManyToOne  Cardinality = "N:1"
	ManyToMany Cardinality = "N:N"
)

// DefaultCardinality is assigned to relationships created by linking.
const DefaultCardinality = OneToMany

// Cardinalities lists every cardinality in menu order.
func Cardinalities() []Cardinality {
	return []Cardinality{OneToOne, OneToMany, ManyToOne, ManyToMany}
}

// Valid reports whether c is a known cardinality.
func (c Cardinality) Valid() bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// CrowAtFrom reports whether a crow's-foot is drawn at the from end.
func (c Cardinality) CrowAtFrom() bool { return c == ManyToOne || c == ManyToMany }

// CrowAtTo reports whether a crow's-foot is drawn at the to end.
func (c Cardinality) CrowAtTo() bool { return c == OneToMany || c == ManyToMany }

// ParseCardinality parses "1:n", "N:1", ... case-insensitively.
func ParseCardinality(s string) (Cardinality, error) {
	c := Cardinality(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errors.New(errors.ErrCodeInvalidCardinality, "unknown cardinality %q (must be 1:1, 1:N, N:1 or N:N)", s)
	}
	return c, nil
}
