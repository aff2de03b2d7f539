package diagram

import (
	"math"
	"strings"
)

// Point is a position or displacement in world units.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p scaled by k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Record is one occurrence row keyed by attribute name.
type Record map[string]string

// IsEmpty reports whether every value in the record is blank.
func (r Record) IsEmpty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Attribute is a named property of an entity.
type Attribute struct {
	Name     string   `json:"name" bson:"name"`
	PK       bool     `json:"isPK" bson:"isPK"`
	Category Category `json:"category,omitempty" bson:"category,omitempty"`
}

// EffectiveCategory returns the attribute's category, falling back to
// identifier for PK attributes and descriptive otherwise.
func (a Attribute) EffectiveCategory() Category {
	if a.Category != "" {
		return a.Category
	}
	if a.PK {
		return Identifier
	}
	return Descriptive
}

// NewAttribute returns a normalized descriptive attribute.
func NewAttribute(name string) Attribute {
	return Attribute{Name: NormalizeAttributeName(name), Category: Descriptive}
}

// NormalizeAttributeName trims surrounding whitespace and lowercases name.
func NormalizeAttributeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Entity is a card on the canvas.
type Entity struct {
	ID         string      `json:"id" bson:"id"`
	Name       string      `json:"name" bson:"name"`
	Attributes []Attribute `json:"attributes" bson:"attributes"`
	Position   Point       `json:"position" bson:"position"`
	Collapsed  bool        `json:"isCollapsed,omitempty" bson:"isCollapsed,omitempty"`
	Data       []Record    `json:"data,omitempty" bson:"data,omitempty"`
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	out := e
	if e.Attributes != nil {
		out.Attributes = make([]Attribute, len(e.Attributes))
		copy(out.Attributes, e.Attributes)
	}
	if e.Data != nil {
		out.Data = make([]Record, len(e.Data))
		for i, r := range e.Data {
			cp := make(Record, len(r))
			for k, v := range r {
				cp[k] = v
			}
			out.Data[i] = cp
		}
	}
	return out
}

// PrimaryKeys returns the names of the entity's PK attributes in order.
func (e Entity) PrimaryKeys() []string {
	var keys []string
	for _, a := range e.Attributes {
		if a.PK {
			keys = append(keys, a.Name)
		}
	}
	return keys
}

// Relationship links two entities.
type Relationship struct {
	ID            string      `json:"id" bson:"id"`
	FromID        string      `json:"fromId" bson:"fromId"`
	ToID          string      `json:"toId" bson:"toId"`
	Cardinality   Cardinality `json:"cardinality" bson:"cardinality"`
	Name          string      `json:"name,omitempty" bson:"name,omitempty"`
	ControlOffset Point       `json:"controlPointOffset" bson:"controlPointOffset"`
}

// IsSelf reports whether the relationship starts and ends on the same entity.
func (r Relationship) IsSelf() bool { return r.FromID == r.ToID }

// Touches reports whether entityID is one of the relationship's endpoints.
func (r Relationship) Touches(entityID string) bool {
	return r.FromID == entityID || r.ToID == entityID
}

// Label returns the text drawn at the relationship midpoint:
// "name (card)" when named, otherwise just the cardinality.
func (r Relationship) Label() string {
	if r.Name != "" {
		return r.Name + " (" + string(r.Cardinality) + ")"
	}
	return string(r.Cardinality)
}
