package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
)

// PostgresMaterialStore implements the store.MaterialStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMaterialStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMaterialStore creates a new PostgreSQL implementation of
// the MaterialStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMaterialStore(db store.DBTX, logger *slog.Logger) *PostgresMaterialStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMaterialStore{
		db:     db,
		logger: logger.With(slog.String("component", "material_store")),
	}
}

// Ensure PostgresMaterialStore implements store.MaterialStore interface
var _ store.MaterialStore = (*PostgresMaterialStore)(nil)

// CreateMaterial implements store.MaterialStore.CreateMaterial
// Returns store.ErrInvalidEntity if the project does not exist.
func (s *PostgresMaterialStore) CreateMaterial(ctx context.Context, material *domain.Material) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := material.Validate(); err != nil {
		log.Warn("material validation failed during create",
			slog.String("error", err.Error()),
			slog.String("material_id", material.ID.String()))
		return err
	}

	query := `
		INSERT INTO materials (id, project_id, filename, relative_path, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		material.ID,
		material.ProjectID,
		material.Filename,
		material.RelativePath,
		material.URL,
		material.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: project %s not found", store.ErrInvalidEntity, material.ProjectID)
		}
		log.Error("failed to create material",
			slog.String("material_id", material.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("material created", slog.String("material_id", material.ID.String()))
	return nil
}

// GetMaterial implements store.MaterialStore.GetMaterial
// Returns store.ErrMaterialNotFound if the material does not exist.
func (s *PostgresMaterialStore) GetMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error) {
	query := `
		SELECT id, project_id, filename, relative_path, url, created_at
		FROM materials
		WHERE id = $1
	`

	var material domain.Material
	err := s.db.QueryRowContext(ctx, query, materialID).Scan(
		&material.ID,
		&material.ProjectID,
		&material.Filename,
		&material.RelativePath,
		&material.URL,
		&material.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMaterialNotFound
		}
		return nil, MapError(err)
	}
	return &material, nil
}

// ListMaterials implements store.MaterialStore.ListMaterials
// A nil projectID lists global materials.
func (s *PostgresMaterialStore) ListMaterials(ctx context.Context, projectID *uuid.UUID) ([]*domain.Material, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var query string
	var args []any
	if projectID == nil {
		query = `
			SELECT id, project_id, filename, relative_path, url, created_at
			FROM materials
			WHERE project_id IS NULL
			ORDER BY created_at DESC
		`
	} else {
		query = `
			SELECT id, project_id, filename, relative_path, url, created_at
			FROM materials
			WHERE project_id = $1
			ORDER BY created_at DESC
		`
		args = append(args, *projectID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query materials", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var materials []*domain.Material
	for rows.Next() {
		var material domain.Material
		err := rows.Scan(
			&material.ID,
			&material.ProjectID,
			&material.Filename,
			&material.RelativePath,
			&material.URL,
			&material.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan material row", slog.String("error", err.Error()))
			return nil, err
		}
		materials = append(materials, &material)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	if materials == nil {
		materials = []*domain.Material{}
	}
	return materials, nil
}

// DeleteMaterial implements store.MaterialStore.DeleteMaterial
// Returns store.ErrMaterialNotFound if the material does not exist.
func (s *PostgresMaterialStore) DeleteMaterial(ctx context.Context, materialID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM materials WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, materialID)
	if err != nil {
		log.Error("failed to delete material",
			slog.String("material_id", materialID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "material"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrMaterialNotFound, materialID)
	}

	log.Debug("material deleted", slog.String("material_id", materialID.String()))
	return nil
}

// WithTxMaterialStore implements store.MaterialStore.WithTxMaterialStore
// It returns a new store instance that uses the provided transaction.
func (s *PostgresMaterialStore) WithTxMaterialStore(tx *sql.Tx) store.MaterialStore {
	return &PostgresMaterialStore{db: tx, logger: s.logger}
}
