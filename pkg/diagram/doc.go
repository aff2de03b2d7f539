// Package diagram defines the entity-relationship data model shared by every
// other ercanvas package.
//
// # Types
//
// A [Model] is the persisted shape of a diagram: a free-text case study, a
// list of [Entity] cards and a list of [Relationship] links. Entities carry an
// ordered list of [Attribute] values, a world-space [Point] position, a
// collapsed flag and optional occurrence records used by the simulator.
//
// Attributes are classified by a closed [Category] enum. Each category has a
// fixed display label and marker ("(PK)", "[ ]", ...) looked up through
// [Category.Info]. The identifier category is the only one that marks an
// attribute as a primary key, and [Attribute.EffectiveCategory] resolves
// legacy attributes that carry a PK flag but no category.
//
// Relationships are directed only for routing purposes. Their [Cardinality]
// decides where crow's-foot markers are drawn:
//
//	card  crow at from  crow at to
//	1:1   no            no
//	1:N   no            yes
//	N:1   yes           no
//	N:N   yes           yes
//
// # Serialization
//
// JSON field names follow the interchange file format (isPK, fromId,
// controlPointOffset, ...), so files written by [Model] can be read by any
// tool that produced them. BSON tags mirror the JSON names for the document
// storage backend.
//
// # Validation
//
// [Model.Validate] enforces the structural invariants: unique entity and
// relationship ids, finite positions, relationship endpoints that reference
// existing entities, and known categories and cardinalities.
package diagram
