package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/ports"
)

type ContainerRepository interface {
	Load() (*domain.Container, error)
	Save(c *domain.Container) error
}

// FileStorage keeps the container in memory and writes it through to repo
// on every save.
type FileStorage struct {
	mu        sync.RWMutex
	repo      ContainerRepository
	container *domain.Container
}

var _ ports.ContainerStore = (*FileStorage)(nil)

func NewFileStorage(repo ContainerRepository) *FileStorage {
	return &FileStorage{repo: repo}
}

func (s *FileStorage) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load container: %w", err)
		}
		c = &domain.Container{Tasks: []domain.Task{}}
		if err := s.repo.Save(c); err != nil {
			return fmt.Errorf("create container: %w", err)
		}
	}
	s.container = c
	return nil
}

func (s *FileStorage) Load(ctx context.Context) (*domain.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.container == nil {
		return nil, errors.New("container not initialized")
	}
	return s.container.Clone(), nil
}

func (s *FileStorage) Save(ctx context.Context, c *domain.Container) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.container == nil {
		return 0, errors.New("container not initialized")
	}
	if s.container.Version != c.Version {
		return 0, ports.ErrVersionConflict
	}

	next := c.Clone()
	next.Version++
	if err := s.repo.Save(next); err != nil {
		return 0, fmt.Errorf("persist container: %w", err)
	}
	s.container = next
	return next.Version, nil
}

func (s *FileStorage) Close(ctx context.Context) error { return nil }

