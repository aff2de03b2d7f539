// Package store owns the mutable state of one diagram.
//
// A [Store] holds the entity and relationship collections and the case study
// text. Every mutation goes through a Store method, bumps the version and
// notifies subscribers. Reads return a [Snapshot]: a deep copy that callers may
// keep or modify without affecting the store.
//
// # Invariants
//
//   - Entity and relationship ids are unique for the lifetime of the store.
//   - Entity positions are always finite.
//   - Deleting an entity deletes every relationship that references it.
//   - Setting an attribute's category also sets its PK flag: only
//     identifier attributes are primary keys.
//
// # Concurrency
//
// A Store is safe for concurrent use. The HTTP server and the text-service
// workers read snapshots while the canvas controller mutates. Subscribers run
// synchronously after the lock is released and must not block.
package store
