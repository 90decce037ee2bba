package ports

import (
	"context"
	"errors"

	"github.com/olgkv/todolist/internal/domain"
)

// ErrVersionConflict is returned by Save when the stored container changed
// since it was loaded.
var ErrVersionConflict = errors.New("container version conflict")

// ContainerStore describes persistence of the singleton task container.
type ContainerStore interface {
	// Init creates an empty container if none exists. It is idempotent.
	Init(ctx context.Context) error
	Load(ctx context.Context) (*domain.Container, error)
	// Save writes c if the stored version still equals c.Version and
	// returns the new version.
	Save(ctx context.Context, c *domain.Container) (int64, error)
	Close(ctx context.Context) error
}
