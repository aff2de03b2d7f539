package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/observability"
)

// DefaultEntityName is used when an entity is added without a name.
const DefaultEntityName = "New Entity"

// Op names a store mutation. Subscribers and hooks receive it.
type Op string

const (
	OpAddEntity          Op = "add_entity"
	OpUpdateEntity       Op = "update_entity"
	OpDeleteEntity       Op = "delete_entity"
	OpAddAttribute       Op = "add_attribute"
	OpRenameAttribute    Op = "rename_attribute"
	OpRemoveAttribute    Op = "remove_attribute"
	OpReorderAttribute   Op = "reorder_attribute"
	OpSetCategory        Op = "set_category"
	OpAddRelationship    Op = "add_relationship"
	OpUpdateRelationship Op = "update_relationship"
	OpDeleteRelationship Op = "delete_relationship"
	OpSetCaseStudy       Op = "set_case_study"
	OpReplace            Op = "replace"
)

// Snapshot is an immutable view of the diagram at one version.
type Snapshot struct {
	Version uint64 `json:"version"`
	diagram.Model
}

// Change describes one committed mutation.
type Change struct {
	Op       Op
	Snapshot Snapshot
}

// Option configures a [Store].
type Option func(*Store)

// WithIDGenerator replaces the uuid id generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithModel seeds the store with m. The model is not validated.
func WithModel(m diagram.Model) Option {
	return func(s *Store) { s.model = withEmptySlices(m.Clone()) }
}

// Store owns one diagram.
type Store struct {
	mu      sync.RWMutex
	model   diagram.Model
	version uint64
	newID   func() string

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		model: withEmptySlices(diagram.Model{}),
		newID: uuid.NewString,
		subs:  make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current diagram.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Model returns a deep copy of the current diagram without the version.
func (s *Store) Model() diagram.Model {
	return s.Snapshot().Model
}

// Version returns the number of committed mutations.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Entity returns a copy of one entity.
func (s *Store) Entity(id string) (diagram.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.entityIndex(id)
	if i < 0 {
		return diagram.Entity{}, entityNotFound(id)
	}
	return s.model.Entities[i].Clone(), nil
}

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// =============================================================================
// Entities
// =============================================================================

// AddEntity creates an entity at position with the given attribute names.
// Names are normalized and blank names skipped. An empty entity name becomes
// [DefaultEntityName].
func (s *Store) AddEntity(name string, attributeNames []string, position diagram.Point) (diagram.Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEntityName
	}
	if err := errors.ValidateName("entity", name); err != nil {
		return diagram.Entity{}, err
	}
	if !position.IsFinite() {
		return diagram.Entity{}, errors.New(errors.ErrCodeInvalidInput, "entity position must be finite")
	}
	attrs := make([]diagram.Attribute, 0, len(attributeNames))
	for _, n := range attributeNames {
		if a := diagram.NewAttribute(n); a.Name != "" {
			attrs = append(attrs, a)
		}
	}

	var out diagram.Entity
	_ = s.mutate(OpAddEntity, func() error {
		out = diagram.Entity{
			ID:         s.newID(),
			Name:       name,
			Attributes: attrs,
			Position:   position,
		}
		s.model.Entities = append(s.model.Entities, out)
		return nil
	})
	return out.Clone(), nil
}

// EntityPatch is a partial entity update. Nil fields are left unchanged.
type EntityPatch struct {
	Name       *string             `json:"name,omitempty"`
	Position   *diagram.Point      `json:"position,omitempty"`
	Collapsed  *bool               `json:"isCollapsed,omitempty"`
	Attributes []diagram.Attribute `json:"attributes,omitempty"`
	Data       []diagram.Record    `json:"data,omitempty"`
}

// normalizeAttributes lowercases names, drops blank ones and derives PK from
// the category. An attribute without a category keeps its PK flag as the
// deciding input.
func normalizeAttributes(in []diagram.Attribute) []diagram.Attribute {
	out := make([]diagram.Attribute, 0, len(in))
	for _, a := range in {
		name := diagram.NormalizeAttributeName(a.Name)
		if name == "" {
			continue
		}
		c := a.EffectiveCategory()
		out = append(out, diagram.Attribute{Name: name, PK: c.IsPK(), Category: c})
	}
	return out
}

// UpdateEntity merges patch into the entity with the given id.
func (s *Store) UpdateEntity(id string, patch EntityPatch) (diagram.Entity, error) {
	if patch.Name != nil {
		if err := errors.ValidateName("entity", *patch.Name); err != nil {
			return diagram.Entity{}, err
		}
	}
	if patch.Position != nil && !patch.Position.IsFinite() {
		return diagram.Entity{}, errors.New(errors.ErrCodeInvalidInput, "entity position must be finite")
	}
	for _, a := range patch.Attributes {
		if a.Category != "" && !a.Category.Valid() {
			return diagram.Entity{}, errors.New(errors.ErrCodeInvalidCategory, "unknown attribute category %q", a.Category)
		}
	}

	var out diagram.Entity
	err := s.mutateEntity(OpUpdateEntity, id, func(e *diagram.Entity) error {
		if patch.Name != nil {
			e.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Position != nil {
			e.Position = *patch.Position
		}
		if patch.Collapsed != nil {
			e.Collapsed = *patch.Collapsed
		}
		if patch.Attributes != nil {
			e.Attributes = normalizeAttributes(patch.Attributes)
		}
		if patch.Data != nil {
			e.Data = diagram.Entity{Data: patch.Data}.Clone().Data
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

// RenameEntity sets the display name of an entity.
func (s *Store) RenameEntity(id, name string) (diagram.Entity, error) {
	return s.UpdateEntity(id, EntityPatch{Name: &name})
}

// MoveEntity sets the world position of an entity.
func (s *Store) MoveEntity(id string, pos diagram.Point) (diagram.Entity, error) {
	return s.UpdateEntity(id, EntityPatch{Position: &pos})
}

// ToggleCollapse flips the collapsed flag of an entity.
func (s *Store) ToggleCollapse(id string) (diagram.Entity, error) {
	var out diagram.Entity
	err := s.mutateEntity(OpUpdateEntity, id, func(e *diagram.Entity) error {
		e.Collapsed = !e.Collapsed
		out = e.Clone()
		return nil
	})
	return out, err
}

// SetEntityData replaces the occurrence records of an entity. Records whose
// values are all blank are dropped.
func (s *Store) SetEntityData(id string, records []diagram.Record) (diagram.Entity, error) {
	kept := make([]diagram.Record, 0, len(records))
	for _, r := range records {
		if !r.IsEmpty() {
			kept = append(kept, r)
		}
	}
	return s.UpdateEntity(id, EntityPatch{Data: kept})
}

// DeleteEntity removes an entity and every relationship that references it.
// It returns the ids of the removed relationships.
func (s *Store) DeleteEntity(id string) ([]string, error) {
	var removed []string
	err := s.mutate(OpDeleteEntity, func() error {
		i := s.entityIndex(id)
		if i < 0 {
			return entityNotFound(id)
		}
		s.model.Entities = append(s.model.Entities[:i], s.model.Entities[i+1:]...)
		kept := s.model.Relationships[:0]
		for _, r := range s.model.Relationships {
			if r.Touches(id) {
				removed = append(removed, r.ID)
				continue
			}
			kept = append(kept, r)
		}
		s.model.Relationships = kept
		return nil
	})
	return removed, err
}

// =============================================================================
// Attributes
// =============================================================================

// AddAttribute appends a descriptive, non-PK attribute.
func (s *Store) AddAttribute(id, name string) (diagram.Entity, error) {
	attr := diagram.NewAttribute(name)
	if attr.Name == "" {
		return diagram.Entity{}, errors.New(errors.ErrCodeInvalidInput, "attribute name cannot be empty")
	}
	var out diagram.Entity
	err := s.mutateEntity(OpAddAttribute, id, func(e *diagram.Entity) error {
		e.Attributes = append(e.Attributes, attr)
		out = e.Clone()
		return nil
	})
	return out, err
}

// RenameAttribute renames the attribute at index. A name that is blank after
// trimming removes the attribute instead.
func (s *Store) RenameAttribute(id string, index int, name string) (diagram.Entity, error) {
	name = diagram.NormalizeAttributeName(name)
	if name == "" {
		return s.RemoveAttribute(id, index)
	}
	var out diagram.Entity
	err := s.mutateEntity(OpRenameAttribute, id, func(e *diagram.Entity) error {
		if err := checkIndex(e, index); err != nil {
			return err
		}
		e.Attributes[index].Name = name
		out = e.Clone()
		return nil
	})
	return out, err
}

// RemoveAttribute deletes the attribute at index.
func (s *Store) RemoveAttribute(id string, index int) (diagram.Entity, error) {
	var out diagram.Entity
	err := s.mutateEntity(OpRemoveAttribute, id, func(e *diagram.Entity) error {
		if err := checkIndex(e, index); err != nil {
			return err
		}
		e.Attributes = append(e.Attributes[:index], e.Attributes[index+1:]...)
		out = e.Clone()
		return nil
	})
	return out, err
}

// ReorderAttribute moves the attribute at from to position to, preserving the
// relative order of every other attribute.
func (s *Store) ReorderAttribute(id string, from, to int) (diagram.Entity, error) {
	var out diagram.Entity
	err := s.mutateEntity(OpReorderAttribute, id, func(e *diagram.Entity) error {
		if err := checkIndex(e, from); err != nil {
			return err
		}
		if err := checkIndex(e, to); err != nil {
			return err
		}
		e.Attributes = moveAttribute(e.Attributes, from, to)
		out = e.Clone()
		return nil
	})
	return out, err
}

// SetAttributeCategory reclassifies the attribute at index. The PK flag is set
// exactly when the category is identifier.
func (s *Store) SetAttributeCategory(id string, index int, category diagram.Category) (diagram.Entity, error) {
	if !category.Valid() {
		return diagram.Entity{}, errors.New(errors.ErrCodeInvalidCategory, "unknown attribute category %q", category)
	}
	var out diagram.Entity
	err := s.mutateEntity(OpSetCategory, id, func(e *diagram.Entity) error {
		if err := checkIndex(e, index); err != nil {
			return err
		}
		e.Attributes[index].Category = category
		e.Attributes[index].PK = category.IsPK()
		out = e.Clone()
		return nil
	})
	return out, err
}

func moveAttribute(attrs []diagram.Attribute, from, to int) []diagram.Attribute {
	if from == to {
		return attrs
	}
	a := attrs[from]
	attrs = append(attrs[:from], attrs[from+1:]...)
	attrs = append(attrs[:to], append([]diagram.Attribute{a}, attrs[to:]...)...)
	return attrs
}

func checkIndex(e *diagram.Entity, i int) error {
	if i < 0 || i >= len(e.Attributes) {
		return errors.New(errors.ErrCodeInvalidInput, "attribute index %d out of range for entity %q (%d attributes)", i, e.ID, len(e.Attributes))
	}
	return nil
}

// =============================================================================
// Relationships
// =============================================================================

// AddRelationship links from to to with the default cardinality and a zero
// control offset. from and to may be equal.
func (s *Store) AddRelationship(from, to string) (diagram.Relationship, error) {
	return s.AddRelationshipWith(diagram.Relationship{FromID: from, ToID: to, Cardinality: diagram.DefaultCardinality})
}

// AddRelationshipWith inserts r with a fresh id. An empty cardinality becomes
// the default.
func (s *Store) AddRelationshipWith(r diagram.Relationship) (diagram.Relationship, error) {
	if r.Cardinality == "" {
		r.Cardinality = diagram.DefaultCardinality
	}
	if !r.Cardinality.Valid() {
		return diagram.Relationship{}, errors.New(errors.ErrCodeInvalidCardinality, "unknown cardinality %q", r.Cardinality)
	}
	if !r.ControlOffset.IsFinite() {
		return diagram.Relationship{}, errors.New(errors.ErrCodeInvalidInput, "control offset must be finite")
	}
	r.Name = strings.TrimSpace(r.Name)
	err := s.mutate(OpAddRelationship, func() error {
		if s.entityIndex(r.FromID) < 0 {
			return entityNotFound(r.FromID)
		}
		if s.entityIndex(r.ToID) < 0 {
			return entityNotFound(r.ToID)
		}
		r.ID = s.newID()
		s.model.Relationships = append(s.model.Relationships, r)
		return nil
	})
	if err != nil {
		return diagram.Relationship{}, err
	}
	return r, nil
}

// RelationshipPatch is a partial relationship update. Nil fields are left
// unchanged. An empty Name clears the name.
type RelationshipPatch struct {
	Cardinality   *diagram.Cardinality `json:"cardinality,omitempty"`
	Name          *string              `json:"name,omitempty"`
	ControlOffset *diagram.Point       `json:"controlPointOffset,omitempty"`
}

// UpdateRelationship merges patch into the relationship with the given id.
func (s *Store) UpdateRelationship(id string, patch RelationshipPatch) (diagram.Relationship, error) {
	if patch.Cardinality != nil && !patch.Cardinality.Valid() {
		return diagram.Relationship{}, errors.New(errors.ErrCodeInvalidCardinality, "unknown cardinality %q", *patch.Cardinality)
	}
	if patch.ControlOffset != nil && !patch.ControlOffset.IsFinite() {
		return diagram.Relationship{}, errors.New(errors.ErrCodeInvalidInput, "control offset must be finite")
	}
	var out diagram.Relationship
	err := s.mutate(OpUpdateRelationship, func() error {
		i := s.relationshipIndex(id)
		if i < 0 {
			return relationshipNotFound(id)
		}
		r := &s.model.Relationships[i]
		if patch.Cardinality != nil {
			r.Cardinality = *patch.Cardinality
		}
		if patch.Name != nil {
			r.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.ControlOffset != nil {
			r.ControlOffset = *patch.ControlOffset
		}
		out = *r
		return nil
	})
	return out, err
}

// DeleteRelationship removes one relationship.
func (s *Store) DeleteRelationship(id string) error {
	return s.mutate(OpDeleteRelationship, func() error {
		i := s.relationshipIndex(id)
		if i < 0 {
			return relationshipNotFound(id)
		}
		s.model.Relationships = append(s.model.Relationships[:i], s.model.Relationships[i+1:]...)
		return nil
	})
}

// =============================================================================
// Whole diagram
// =============================================================================

// SetCaseStudy replaces the case study text.
func (s *Store) SetCaseStudy(text string) {
	_ = s.mutate(OpSetCaseStudy, func() error {
		s.model.CaseStudy = text
		return nil
	})
}

// Replace swaps the whole diagram for m after validating it. On error the
// store is unchanged.
func (s *Store) Replace(m diagram.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m = withEmptySlices(m.Clone())
	return s.mutate(OpReplace, func() error {
		s.model = m
		return nil
	})
}

// Clear removes every entity and relationship and the case study.
func (s *Store) Clear() {
	_ = s.mutate(OpReplace, func() error {
		s.model = withEmptySlices(diagram.Model{})
		return nil
	})
}

// =============================================================================
// Internals
// =============================================================================

// mutate runs fn under the write lock. When fn succeeds the version is bumped
// and subscribers and hooks are notified after the lock is released.
func (s *Store) mutate(op Op, fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	observability.Diagram().OnMutation(string(op), len(snap.Entities), len(snap.Relationships))
	s.notify(Change{Op: op, Snapshot: snap})
	return nil
}

func (s *Store) mutateEntity(op Op, id string, fn func(*diagram.Entity) error) error {
	return s.mutate(op, func() error {
		i := s.entityIndex(id)
		if i < 0 {
			return entityNotFound(id)
		}
		// Work on a copy so a failing fn leaves the entity untouched.
		e := s.model.Entities[i].Clone()
		if err := fn(&e); err != nil {
			return err
		}
		s.model.Entities[i] = e
		return nil
	})
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, Model: s.model.Clone()}
}

func (s *Store) entityIndex(id string) int {
	for i, e := range s.model.Entities {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) relationshipIndex(id string) int {
	for i, r := range s.model.Relationships {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// withEmptySlices keeps the collections non-nil so they encode as [] rather
// than null.
func withEmptySlices(m diagram.Model) diagram.Model {
	if m.Entities == nil {
		m.Entities = []diagram.Entity{}
	}
	if m.Relationships == nil {
		m.Relationships = []diagram.Relationship{}
	}
	return m
}

func entityNotFound(id string) error {
	return errors.New(errors.ErrCodeEntityNotFound, "entity %q not found", id)
}

func relationshipNotFound(id string) error {
	return errors.New(errors.ErrCodeRelationshipNotFound, "relationship %q not found", id)
}
