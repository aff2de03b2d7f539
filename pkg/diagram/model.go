package diagram

import "github.com/matzehuels/ercanvas/pkg/errors"

// Model is the persisted shape of a diagram.
type Model struct {
	CaseStudy     string         `json:"caseStudy" bson:"caseStudy"`
	Entities      []Entity       `json:"entities" bson:"entities"`
	Relationships []Relationship `json:"relationships" bson:"relationships"`
}

// Clone returns a deep copy of m.
func (m Model) Clone() Model {
	out := Model{CaseStudy: m.CaseStudy}
	if m.Entities != nil {
		out.Entities = make([]Entity, len(m.Entities))
		for i, e := range m.Entities {
			out.Entities[i] = e.Clone()
		}
	}
	if m.Relationships != nil {
		out.Relationships = make([]Relationship, len(m.Relationships))
		copy(out.Relationships, m.Relationships)
	}
	return out
}

// Entity returns the entity with the given id.
func (m Model) Entity(id string) (Entity, bool) {
	for _, e := range m.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// EntityIndex maps entity ids to entities.
func (m Model) EntityIndex() map[string]Entity {
	idx := make(map[string]Entity, len(m.Entities))
	for _, e := range m.Entities {
		idx[e.ID] = e
	}
	return idx
}

// Relationship returns the relationship with the given id.
func (m Model) Relationship(id string) (Relationship, bool) {
	for _, r := range m.Relationships {
		if r.ID == id {
			return r, true
		}
	}
	return Relationship{}, false
}

// AttributeCount returns the total number of attributes across all entities.
func (m Model) AttributeCount() int {
	n := 0
	for _, e := range m.Entities {
		n += len(e.Attributes)
	}
	return n
}

// IsEmpty reports whether the model has no entities and no relationships.
func (m Model) IsEmpty() bool {
	return len(m.Entities) == 0 && len(m.Relationships) == 0
}

// Validate checks the structural invariants of the model.
// The returned error carries [errors.ErrCodeInvalidModel].
func (m Model) Validate() error {
	ids := make(map[string]bool, len(m.Entities))
	for i, e := range m.Entities {
		if e.ID == "" {
			return invalid("entity %d: missing id", i)
		}
		if ids[e.ID] {
			return invalid("entity %s: duplicate id", e.ID)
		}
		ids[e.ID] = true
		if !e.Position.IsFinite() {
			return invalid("entity %s: position is not finite", e.ID)
		}
		for j, a := range e.Attributes {
			if a.Category != "" && !a.Category.Valid() {
				return invalid("entity %s attribute %d: unknown category %q", e.ID, j, a.Category)
			}
		}
	}

	relIDs := make(map[string]bool, len(m.Relationships))
	for i, r := range m.Relationships {
		if r.ID == "" {
			return invalid("relationship %d: missing id", i)
		}
		if relIDs[r.ID] {
			return invalid("relationship %s: duplicate id", r.ID)
		}
		relIDs[r.ID] = true
		if !ids[r.FromID] {
			return invalid("relationship %s: unknown source entity %q", r.ID, r.FromID)
		}
		if !ids[r.ToID] {
			return invalid("relationship %s: unknown target entity %q", r.ID, r.ToID)
		}
		if !r.Cardinality.Valid() {
			return invalid("relationship %s: unknown cardinality %q", r.ID, r.Cardinality)
		}
		if !r.ControlOffset.IsFinite() {
			return invalid("relationship %s: control offset is not finite", r.ID)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidModel, format, args...)
}
