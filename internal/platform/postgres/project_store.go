package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
)

// PostgresProjectStore implements the store.ProjectStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectStore creates a new PostgreSQL implementation of the
// ProjectStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresProjectStore(db store.DBTX, logger *slog.Logger) *PostgresProjectStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProjectStore{
		db:     db,
		logger: logger.With(slog.String("component", "project_store")),
	}
}

// Ensure PostgresProjectStore implements store.ProjectStore interface
var _ store.ProjectStore = (*PostgresProjectStore)(nil)

// CreateProject implements store.ProjectStore.CreateProject
func (s *PostgresProjectStore) CreateProject(ctx context.Context, project *domain.Project) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := project.Validate(); err != nil {
		log.Warn("project validation failed during create",
			slog.String("error", err.Error()),
			slog.String("project_id", project.ID.String()))
		return err
	}

	query := `
		INSERT INTO projects (id, title, status, outline_text, description_text, export_allow_partial, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		project.ID,
		project.Title,
		project.Status,
		project.OutlineText,
		project.DescriptionText,
		project.ExportAllowPartial,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create project",
			slog.String("project_id", project.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("project created",
		slog.String("project_id", project.ID.String()),
		slog.String("status", string(project.Status)))
	return nil
}

// GetProject implements store.ProjectStore.GetProject
// Returns store.ErrProjectNotFound if the project does not exist.
func (s *PostgresProjectStore) GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, status, outline_text, description_text, export_allow_partial, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var project domain.Project
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&project.ID,
		&project.Title,
		&project.Status,
		&project.OutlineText,
		&project.DescriptionText,
		&project.ExportAllowPartial,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProjectNotFound
		}
		log.Error("failed to get project",
			slog.String("project_id", projectID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &project, nil
}

// UpdateProjectStatus implements store.ProjectStore.UpdateProjectStatus
// Returns store.ErrProjectNotFound if the project does not exist.
func (s *PostgresProjectStore) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status domain.ProjectStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE projects
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), projectID)
	if err != nil {
		log.Error("failed to update project status",
			slog.String("project_id", projectID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "project"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}

	log.Debug("project status updated",
		slog.String("project_id", projectID.String()),
		slog.String("status", string(status)))
	return nil
}

// UpdateProjectTexts implements store.ProjectStore.UpdateProjectTexts
// It stores the aggregated texts and moves the status in one write.
func (s *PostgresProjectStore) UpdateProjectTexts(ctx context.Context, projectID uuid.UUID, outlineText, descriptionText string, status domain.ProjectStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE projects
		SET outline_text = $1, description_text = $2, status = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query, outlineText, descriptionText, status, time.Now().UTC(), projectID)
	if err != nil {
		log.Error("failed to update project texts",
			slog.String("project_id", projectID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "project"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}

	log.Info("project texts updated",
		slog.String("project_id", projectID.String()),
		slog.String("status", string(status)))
	return nil
}

// WithTxProjectStore implements store.ProjectStore.WithTxProjectStore
// It returns a new store instance that uses the provided transaction.
func (s *PostgresProjectStore) WithTxProjectStore(tx *sql.Tx) store.ProjectStore {
	return &PostgresProjectStore{db: tx, logger: s.logger}
}
