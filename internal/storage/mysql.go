package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/ports"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore keeps the container as one row with the task list in a JSON column.
type MySQLStore struct {
	db *sql.DB
}

var _ ports.ContainerStore = (*MySQLStore)(nil)

func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return newMySQLStore(db), nil
}

func newMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) Init(ctx context.Context) error {
	createTable := `CREATE TABLE IF NOT EXISTS task_containers (
    id VARCHAR(32) PRIMARY KEY,
    tasks JSON NOT NULL,
    version BIGINT NOT NULL DEFAULT 0
)`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO task_containers (id, tasks, version) VALUES (?, '[]', 0)`, containerID); err != nil {
		return fmt.Errorf("init container: %w", err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context) (*domain.Container, error) {
	var (
		raw     []byte
		version int64
	)
	row := s.db.QueryRowContext(ctx, `SELECT tasks, version FROM task_containers WHERE id = ?`, containerID)
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("container not initialized")
		}
		return nil, fmt.Errorf("select container: %w", err)
	}
	tasks, err := decodeTasks(raw)
	if err != nil {
		return nil, err
	}
	return &domain.Container{Tasks: tasks, Version: version}, nil
}

func (s *MySQLStore) Save(ctx context.Context, c *domain.Container) (int64, error) {
	raw, err := encodeTasks(c.Tasks)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_containers SET tasks = ?, version = version + 1 WHERE id = ? AND version = ?`,
		raw, containerID, c.Version)
	if err != nil {
		return 0, fmt.Errorf("update container: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, ports.ErrVersionConflict
	}
	return c.Version + 1, nil
}

func (s *MySQLStore) Close(ctx context.Context) error { return s.db.Close() }

func encodeTasks(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}
	return raw, nil
}

func decodeTasks(raw []byte) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if len(raw) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}
