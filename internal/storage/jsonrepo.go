package storage

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/olgkv/todolist/internal/domain"
)

// JSONRepository stores the task container as a single JSON document on disk.
type JSONRepository struct {
	path string
}

func NewJSONRepository(path string) *JSONRepository {
	return &JSONRepository{path: path}
}

// Load returns os.ErrNotExist when the file has not been created yet.
func (r *JSONRepository) Load() (*domain.Container, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	defer f.Close()

	var c domain.Container
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.Container{Tasks: []domain.Task{}}, nil
		}
		return nil, err
	}
	if c.Tasks == nil {
		c.Tasks = []domain.Task{}
	}
	return &c, nil
}

func (r *JSONRepository) Save(c *domain.Container) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
