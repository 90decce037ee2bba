package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/metrics"
	pdfgen "github.com/olgkv/todolist/internal/pdf"
	"github.com/olgkv/todolist/internal/ports"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidPage  = errors.New("invalid page")
	ErrInvalidLimit = errors.New("invalid limit")
)

const (
	defaultUpdateRetries = 3
	defaultPageLimit     = 10
	defaultMaxPageLimit  = 100
	defaultStoreTimeout  = 5 * time.Second

	conflictBackoff = 100 * time.Millisecond
)

// wait pauses between conflicting attempts. It returns early with the
// context error when ctx is done first.
var wait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Options struct {
	UpdateRetries int
	DefaultLimit  int
	MaxLimit      int
	StoreTimeout  time.Duration
}

// TaskPatch carries optional replacements for a task's fields. Empty values
// leave the stored field unchanged.
type TaskPatch struct {
	Task   string
	Status string
}

type Service struct {
	store         ports.ContainerStore
	updateRetries int
	defaultLimit  int
	maxLimit      int
	storeTimeout  time.Duration
}

func New(store ports.ContainerStore, opts Options) *Service {
	if opts.UpdateRetries <= 0 {
		opts.UpdateRetries = defaultUpdateRetries
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultPageLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaultMaxPageLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &Service{
		store:         store,
		updateRetries: opts.UpdateRetries,
		defaultLimit:  opts.DefaultLimit,
		maxLimit:      opts.MaxLimit,
		storeTimeout:  opts.StoreTimeout,
	}
}

// Init makes sure the container exists. Safe to call on every start.
func (s *Service) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Init(ctx)
}

func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Tasks, nil
}

// Pagination parses raw page and limit query values. Empty values fall back
// to page 1 and the default limit; limits above the maximum are clamped.
func (s *Service) Pagination(pageRaw, limitRaw string) (page, limit int, err error) {
	page, limit = 1, s.defaultLimit
	if pageRaw != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return 0, 0, ErrInvalidPage
		}
	}
	if limitRaw != "" {
		limit, err = strconv.Atoi(limitRaw)
		if err != nil || limit < 1 {
			return 0, 0, ErrInvalidLimit
		}
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return page, limit, nil
}

func (s *Service) ListPage(ctx context.Context, page, limit int) (*domain.Page, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return paginate(c.Tasks, page, limit), nil
}

// ListByStatus filters tasks whose status contains status, ignoring case,
// and paginates the result. Totals describe the filtered set.
func (s *Service) ListByStatus(ctx context.Context, status string, page, limit int) (*domain.Page, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return paginate(filterByStatus(c.Tasks, status), page, limit), nil
}

func (s *Service) AddTask(ctx context.Context, t domain.Task) error {
	return s.mutate(ctx, func(c *domain.Container) error {
		c.Tasks = append(c.Tasks, t)
		return nil
	})
}

func (s *Service) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	return s.mutate(ctx, func(c *domain.Container) error {
		i := c.IndexOf(id)
		if i < 0 {
			return ErrTaskNotFound
		}
		if patch.Task != "" {
			c.Tasks[i].Task = patch.Task
		}
		if patch.Status != "" {
			c.Tasks[i].Status = patch.Status
		}
		return nil
	})
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *domain.Container) error {
		i := c.IndexOf(id)
		if i < 0 {
			return ErrTaskNotFound
		}
		c.Tasks = append(c.Tasks[:i], c.Tasks[i+1:]...)
		return nil
	})
}

// GenerateReport renders the tasks matching status (all tasks when empty) as a PDF.
func (s *Service) GenerateReport(ctx context.Context, status string) ([]byte, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	title := "Tasks"
	tasks := c.Tasks
	if status != "" {
		title = fmt.Sprintf("Tasks with status \"%s\"", status)
		tasks = filterByStatus(tasks, status)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pdfgen.BuildTasksReport(title, tasks)
}

// Stats returns the number of stored tasks and how many of them are marked done.
func (s *Service) Stats(ctx context.Context) (total int, done int, err error) {
	c, err := s.load(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, t := range c.Tasks {
		total++
		if strings.EqualFold(t.Status, "done") {
			done++
		}
	}
	return total, done, nil
}

func (s *Service) load(ctx context.Context) (*domain.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}
	if c.Tasks == nil {
		c.Tasks = []domain.Task{}
	}
	return c, nil
}

// mutate runs a read-modify-write cycle on the container. When another
// writer saved in between, the container is reloaded and fn applied again.
func (s *Service) mutate(ctx context.Context, fn func(c *domain.Container) error) error {
	for attempt := 1; attempt <= s.updateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := s.load(ctx)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}

		saveCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		_, err = s.store.Save(saveCtx, c)
		cancel()
		if err == nil {
			metrics.StoredTasks.Set(float64(len(c.Tasks)))
			return nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return fmt.Errorf("save container: %w", err)
		}

		metrics.VersionConflicts.Inc()
		slog.Warn("container version conflict", "attempt", attempt, "max_attempts", s.updateRetries)
		if attempt < s.updateRetries {
			if err := wait(ctx, conflictBackoff*time.Duration(attempt)); err != nil {
				return fmt.Errorf("retry after version conflict: %w", err)
			}
		}
	}
	return fmt.Errorf("save container after %d attempts: %w", s.updateRetries, ports.ErrVersionConflict)
}

func filterByStatus(tasks []domain.Task, status string) []domain.Task {
	if status == "" {
		return tasks
	}
	needle := strings.ToLower(status)
	res := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Status), needle) {
			res = append(res, t)
		}
	}
	return res
}

func paginate(tasks []domain.Task, page, limit int) *domain.Page {
	total := len(tasks)
	totalPages := (total + limit - 1) / limit

	res := &domain.Page{
		Tasks:       []domain.Task{},
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalTasks:  total,
	}
	if page > totalPages {
		return res
	}
	start := (page - 1) * limit
	end := start + limit
	if end > total {
		end = total
	}
	res.Tasks = tasks[start:end]
	return res
}
