package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/matzehuels/ercanvas/pkg/errors"
)

// SQLiteStore keeps workspaces in one table of a SQLite database, the
// payload stored as a JSON blob.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and if needed creates) the database at path. An
// empty path uses workspaces.db next to the file backend's default directory.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		dir, err := DefaultWorkspaceDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(filepath.Dir(dir), "workspaces.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !stderrors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create workspaces table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Workspace, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM workspaces WHERE id = ?`, id).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select workspace: %w", err)
	}
	var w Workspace
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidModel, err, "decode workspace %q", id)
	}
	return &w, nil
}

func (s *SQLiteStore) Put(ctx context.Context, w *Workspace) error {
	if err := prepare(w); err != nil {
		return err
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces(id, payload, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		w.ID, payload, w.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
