// Package pkg provides the core libraries of ercanvas, an entity-relationship
// diagram editor for data-modeling practice.
//
// # Overview
//
// A diagram is a set of entity cards joined by relationship curves on an
// infinite, pannable and zoomable canvas. The pkg directory is organized into
// three areas:
//
//  1. Core: the data model, geometry, interaction and composition
//  2. Output: exports and the persisted file format
//  3. Infrastructure: storage, caching, the text-service client and hooks
//
// # Architecture
//
// The typical data flow:
//
//	pointer / keyboard events
//	         ↓
//	    [canvas] Controller (hit tests, gestures)
//	         ↓
//	    [store] (mutations, cascade delete, change notifications)
//	         ↓
//	    [canvas] Build → Scene (cards from [geometry], links from [route])
//	         ↓
//	    [render] SVG / PNG / PDF / DOT, or a browser canvas via the HTTP API
//
// # Quick Start
//
//	st := store.New()
//	a, _ := st.AddEntity("Student", []string{"id", "name"}, diagram.Pt(0, 0))
//	b, _ := st.AddEntity("Course", []string{"code"}, diagram.Pt(400, 0))
//	_, _ = st.AddRelationship(a.ID, b.ID)
//
//	scene := canvas.Build(st.Model(), geometry.DefaultMetrics(), true)
//	svg := render.SVG(scene)
//
// # Main Packages
//
// ## Core
//
// [diagram] - Entities, attributes, relationships, cardinalities and attribute
// categories. Plain values with deep Clone methods.
//
// [geometry] - Card sizing, face anchors and fan-out offsets. Pure functions
// of the model and a [geometry.Metrics].
//
// [viewport] - The pan/zoom transform: zoom at cursor, fit to content and
// the spawn point for new cards.
//
// [interact] - Gesture state machines: drag, pan, linking and grid snap.
//
// [route] - Relationship curves, self-loops, crow's feet and label boxes.
//
// [store] - The single source of truth. Every mutation is validated, bumps
// the version and notifies subscribers.
//
// [canvas] - Scene composition and the interactive Controller shared by the
// terminal editor and the HTTP API.
//
// ## Output
//
// [render] - SVG, PNG (fogleman/gg), PDF (rsvg-convert), Graphviz DOT and
// SVG, plain text and the data dictionary.
//
// [io] - The persisted JSON model format: strict import and indented export.
//
// [fonts] - Typefaces for raster output.
//
// ## Infrastructure
//
// [storage] - Workspace persistence with memory, file, SQLite, Redis and
// MongoDB backends.
//
// [cache] - Response cache with file, Redis and null backends.
//
// [tutor] - The text-service collaborator: case studies, evaluations, SQL
// and hints, with a cached decorator.
//
// [observability] - Hook interfaces for metrics; no-ops by default.
//
// [errors] - Coded errors shared by every package.
//
// [httputil] - HTTP client defaults and retry with backoff.
//
// [buildinfo] - Version information injected at build time.
//
// # Testing
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/route/...     # Specific package
//	go test -run Example ./...  # Examples only
package pkg
