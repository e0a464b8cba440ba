package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
	"github.com/guojun21/banana-slides/internal/task"
)

// PostgresTaskStore implements the task.TaskStore interface using
// PostgreSQL. Progress is stored as a single JSONB object so polling
// handlers can return it to clients without reshaping.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// task.TaskStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements task.TaskStore interface
var _ task.TaskStore = (*PostgresTaskStore)(nil)

// CreateTask implements task.TaskStore.CreateTask
func (s *PostgresTaskStore) CreateTask(ctx context.Context, record *task.Record) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	progress, err := json.Marshal(record.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode task progress: %w", err)
	}

	query := `
		INSERT INTO tasks (id, project_id, type, status, progress, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.ProjectID,
		record.Type,
		record.Status,
		progress,
		record.ErrorMessage,
		record.CreatedAt,
		record.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("task_id", record.ID.String()),
			slog.String("task_type", record.Type),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", record.ID.String()),
		slog.String("task_type", record.Type))
	return nil
}

// GetTask implements task.TaskStore.GetTask
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, project_id, type, status, progress, error_message, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	var record task.Record
	var progress []byte
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&record.ID,
		&record.ProjectID,
		&record.Type,
		&record.Status,
		&progress,
		&errorMessage,
		&record.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &record.Progress); err != nil {
			return nil, fmt.Errorf("failed to decode task progress: %w", err)
		}
	}
	record.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	return &record, nil
}

// UpdateTaskStatus implements task.TaskStore.UpdateTaskStatus
// Terminal statuses (COMPLETED, FAILED) also set completed_at.
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.Status, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var completedAt *time.Time
	if status == task.StatusCompleted || status == task.StatusFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, errorMsg, completedAt, taskID)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, taskID)
	}
	return nil
}

// GetTaskProgress implements task.TaskStore.GetTaskProgress
func (s *PostgresTaskStore) GetTaskProgress(ctx context.Context, taskID uuid.UUID) (task.Progress, error) {
	query := `SELECT progress FROM tasks WHERE id = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Progress{}, store.ErrTaskNotFound
		}
		return task.Progress{}, MapError(err)
	}

	var progress task.Progress
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &progress); err != nil {
			return task.Progress{}, fmt.Errorf("failed to decode task progress: %w", err)
		}
	}
	return progress, nil
}

// SetTaskProgress implements task.TaskStore.SetTaskProgress
func (s *PostgresTaskStore) SetTaskProgress(ctx context.Context, taskID uuid.UUID, progress task.Progress) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode task progress: %w", err)
	}

	query := `UPDATE tasks SET progress = $1 WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, raw, taskID)
	if err != nil {
		log.Error("failed to set task progress",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, taskID)
	}
	return nil
}

// WithTx implements task.TaskStore.WithTx
// It returns a new store instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}
