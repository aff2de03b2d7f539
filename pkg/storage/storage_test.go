package storage

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/observability"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

func sampleWorkspace(id string) *Workspace {
	return &Workspace{
		ID: id,
		Model: diagram.Model{
			CaseStudy: "A library lends books.",
			Entities: []diagram.Entity{{
				ID: "b", Name: "Book", Position: diagram.Pt(10, 20),
				Attributes: []diagram.Attribute{{Name: "isbn", PK: true, Category: diagram.Identifier}},
			}},
			Relationships: []diagram.Relationship{},
		},
		View: viewport.Transform{X: 5, Y: -3, K: 1.5},
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sq, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ws.db"))
	if err != nil {
		t.Fatal(err)
	}
	stores := map[string]Store{
		BackendMemory: NewMemoryStore(),
		BackendFile:   fs,
		BackendSQLite: sq,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "library"); !stderrors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
			}

			w := sampleWorkspace("library")
			if err := s.Put(ctx, w); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if w.UpdatedAt.IsZero() {
				t.Error("Put should stamp UpdatedAt")
			}

			got, err := s.Get(ctx, "library")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Model.Entities[0].Name != "Book" || got.View.K != 1.5 {
				t.Errorf("Get = %+v", got)
			}
			if !got.UpdatedAt.Equal(w.UpdatedAt) {
				t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, w.UpdatedAt)
			}

			w.Model.Entities[0].Name = "Volume"
			if err := s.Put(ctx, w); err != nil {
				t.Fatal(err)
			}
			got, _ = s.Get(ctx, "library")
			if got.Model.Entities[0].Name != "Volume" {
				t.Error("second Put should replace the workspace")
			}

			_ = s.Put(ctx, sampleWorkspace("archive"))
			ids, err := s.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 2 || ids[0] != "archive" || ids[1] != "library" {
				t.Errorf("List = %v", ids)
			}

			if err := s.Delete(ctx, "library"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "library"); err != nil {
				t.Errorf("deleting twice: %v", err)
			}
			if _, err := s.Get(ctx, "library"); !errors.Is(err, errors.ErrCodeWorkspaceNotFound) {
				t.Errorf("after delete: %v", err)
			}
		})
	}
}

func TestPutRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		for _, id := range []string{"", "../etc", "a/b"} {
			if err := s.Put(ctx, sampleWorkspace(id)); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("%s: Put(%q) err = %v, want INVALID_INPUT", name, id, err)
			}
		}
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := sampleWorkspace("x")
	_ = s.Put(ctx, w)
	w.Model.Entities[0].Name = "changed"

	got, _ := s.Get(ctx, "x")
	if got.Model.Entities[0].Name != "Book" {
		t.Error("stored workspace aliases the caller's model")
	}
}

type recordingStorageHooks struct {
	observability.NoopStorageHooks
	saves, loads int
}

func (h *recordingStorageHooks) OnSave(context.Context, string, time.Duration, error) { h.saves++ }
func (h *recordingStorageHooks) OnLoad(context.Context, string, time.Duration, error) { h.loads++ }

func TestOpenInstruments(t *testing.T) {
	h := &recordingStorageHooks{}
	observability.SetStorageHooks(h)
	defer observability.Reset()

	ctx := context.Background()
	s, err := Open(ctx, Config{Backend: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Put(ctx, sampleWorkspace("a"))
	_, _ = s.Get(ctx, "a")
	_, _ = s.Get(ctx, "missing")
	if h.saves != 1 || h.loads != 2 {
		t.Errorf("saves = %d, loads = %d", h.saves, h.loads)
	}

	if _, err := Open(ctx, Config{Backend: "tape"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown backend: %v", err)
	}
}
