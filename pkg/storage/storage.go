// Package storage persists workspaces: a diagram model plus the viewport it
// was last seen through.
//
// Backends:
//   - memory: process-local, for tests and throwaway servers
//   - file: one JSON file per workspace, for the CLI (~/.config/ercanvas/workspaces/)
//   - sqlite: a single database file through the pure-Go modernc driver
//   - redis: shared storage for multi-instance servers
//   - mongo: document storage, one document per workspace
//
// Use [Open] to construct a backend from configuration. Stores returned by
// Open report every load and save to the observability storage hooks.
//
// Saves are autosaves: the latest write wins and there is no history.
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/observability"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// ErrNotFound is returned (wrapped with [errors.ErrCodeWorkspaceNotFound])
// when a workspace does not exist.
var ErrNotFound = stderrors.New("workspace not found")

// Workspace is one saved diagram.
type Workspace struct {
	ID        string             `json:"id" bson:"_id"`
	Model     diagram.Model      `json:"model" bson:"model"`
	View      viewport.Transform `json:"view" bson:"view"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Store is the interface for workspace storage backends.
type Store interface {
	// Get loads a workspace. A missing id yields an error satisfying
	// errors.Is(err, ErrNotFound).
	Get(ctx context.Context, id string) (*Workspace, error)

	// Put creates or replaces a workspace and stamps UpdatedAt.
	Put(ctx context.Context, w *Workspace) error

	// Delete removes a workspace. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored workspaces, sorted.
	List(ctx context.Context) ([]string, error)

	Close() error
}

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the directory of the file backend or the database file of the
	// sqlite backend. Empty uses the default location.
	Path string

	// Redis
	Addr     string
	Password string
	DB       int

	// Mongo
	URI        string
	Database   string
	Collection string
}

// Open constructs the configured backend. An empty backend name selects the
// file backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	backend := cfg.Backend
	if backend == "" {
		backend = BackendFile
	}
	switch backend {
	case BackendMemory:
		s = NewMemoryStore()
	case BackendFile:
		s, err = NewFileStore(cfg.Path)
	case BackendSQLite:
		s, err = NewSQLiteStore(ctx, cfg.Path)
	case BackendRedis:
		s, err = NewRedisStore(ctx, RedisConfig{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	case BackendMongo:
		s, err = NewMongoStore(ctx, MongoConfig{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection})
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", backend, err)
	}
	return Instrument(s, backend), nil
}

// =============================================================================
// Shared helpers
// =============================================================================

func notFound(id string) error {
	return errors.Wrap(errors.ErrCodeWorkspaceNotFound, ErrNotFound, "workspace %q", id)
}

// prepare validates w and stamps its modification time.
func prepare(w *Workspace) error {
	if w == nil {
		return errors.New(errors.ErrCodeInvalidInput, "workspace is nil")
	}
	if err := errors.ValidateWorkspaceID(w.ID); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// =============================================================================
// Instrumentation
// =============================================================================

type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so that loads and saves are reported to
// [observability.Storage].
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func (s *instrumented) Get(ctx context.Context, id string) (w *Workspace, err error) {
	start := time.Now()
	defer func() { observability.Storage().OnLoad(ctx, s.backend, time.Since(start), err) }()
	return s.Store.Get(ctx, id)
}

func (s *instrumented) Put(ctx context.Context, w *Workspace) (err error) {
	start := time.Now()
	defer func() { observability.Storage().OnSave(ctx, s.backend, time.Since(start), err) }()
	return s.Store.Put(ctx, w)
}
