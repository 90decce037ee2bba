package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/ports"
)

func newTestStorage(t *testing.T) (*FileStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")

	st := NewFileStorage(NewJSONRepository(path))
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return st, path
}

func TestFileStorageInitCreatesEmptyContainer(t *testing.T) {
	st, path := newTestStorage(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected container file to exist: %v", err)
	}
	c, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Tasks == nil || len(c.Tasks) != 0 {
		t.Fatalf("expected empty non-nil task list, got %#v", c.Tasks)
	}
}

func TestFileStorageInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, path := newTestStorage(t)

	c, _ := st.Load(ctx)
	c.Tasks = append(c.Tasks, domain.Task{ID: "1", Task: "write code", Status: "pending"})
	if _, err := st.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again := NewFileStorage(NewJSONRepository(path))
	if err := again.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	got, err := again.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "1" {
		t.Fatalf("second Init must keep existing container, got %#v", got.Tasks)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}
}

func TestFileStorageSaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStorage(t)

	first, _ := st.Load(ctx)
	second, _ := st.Load(ctx)

	first.Tasks = append(first.Tasks, domain.Task{ID: "a"})
	if _, err := st.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second.Tasks = append(second.Tasks, domain.Task{ID: "b"})
	if _, err := st.Save(ctx, second); !errors.Is(err, ports.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := st.Load(ctx)
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "a" {
		t.Fatalf("stale save must not be applied, got %#v", got.Tasks)
	}
}

func TestFileStorageLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStorage(t)

	c, _ := st.Load(ctx)
	c.Tasks = append(c.Tasks, domain.Task{ID: "x"})

	got, _ := st.Load(ctx)
	if len(got.Tasks) != 0 {
		t.Fatalf("mutating a loaded container must not change storage, got %#v", got.Tasks)
	}
}

func TestJSONRepositoryEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := NewJSONRepository(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Tasks) != 0 {
		t.Fatalf("expected empty container, got %#v", c.Tasks)
	}
}

func TestJSONRepositoryMissingFile(t *testing.T) {
	_, err := NewJSONRepository(filepath.Join(t.TempDir(), "missing.json")).Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
