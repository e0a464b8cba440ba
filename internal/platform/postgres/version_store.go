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

// PostgresVersionStore implements the store.VersionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresVersionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresVersionStore creates a new PostgreSQL implementation of the
// VersionStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresVersionStore(db store.DBTX, logger *slog.Logger) *PostgresVersionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresVersionStore{
		db:     db,
		logger: logger.With(slog.String("component", "version_store")),
	}
}

// Ensure PostgresVersionStore implements store.VersionStore interface
var _ store.VersionStore = (*PostgresVersionStore)(nil)

// CreateVersion implements store.VersionStore.CreateVersion
// Returns store.ErrDuplicate if the page already has a version with the
// same number.
func (s *PostgresVersionStore) CreateVersion(ctx context.Context, version *domain.PageImageVersion) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := version.Validate(); err != nil {
		log.Warn("version validation failed during create",
			slog.String("error", err.Error()),
			slog.String("version_id", version.ID.String()))
		return err
	}

	query := `
		INSERT INTO page_image_versions (id, page_id, version_number, image_path, is_current, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		version.ID,
		version.PageID,
		version.VersionNumber,
		version.ImagePath,
		version.IsCurrent,
		version.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create image version",
			slog.String("page_id", version.PageID.String()),
			slog.Int("version", version.VersionNumber),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("image version created",
		slog.String("page_id", version.PageID.String()),
		slog.Int("version", version.VersionNumber))
	return nil
}

// MaxVersionNumber implements store.VersionStore.MaxVersionNumber
// The MAX aggregate, not a row count, decides the next number so a
// deleted version's number is never reused.
func (s *PostgresVersionStore) MaxVersionNumber(ctx context.Context, pageID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(MAX(version_number), 0)
		FROM page_image_versions
		WHERE page_id = $1
	`
	var max int
	if err := s.db.QueryRowContext(ctx, query, pageID).Scan(&max); err != nil {
		return 0, MapError(err)
	}
	return max, nil
}

// MarkAllNotCurrent implements store.VersionStore.MarkAllNotCurrent
func (s *PostgresVersionStore) MarkAllNotCurrent(ctx context.Context, pageID uuid.UUID) error {
	query := `
		UPDATE page_image_versions
		SET is_current = FALSE
		WHERE page_id = $1 AND is_current = TRUE
	`
	if _, err := s.db.ExecContext(ctx, query, pageID); err != nil {
		return MapError(err)
	}
	return nil
}

// SetCurrent implements store.VersionStore.SetCurrent
// Returns store.ErrVersionNotFound if the version does not exist.
func (s *PostgresVersionStore) SetCurrent(ctx context.Context, versionID uuid.UUID) error {
	query := `
		UPDATE page_image_versions
		SET is_current = TRUE
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, versionID)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "image version"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrVersionNotFound, versionID)
	}
	return nil
}

// GetVersion implements store.VersionStore.GetVersion
// Returns store.ErrVersionNotFound if the version does not exist.
func (s *PostgresVersionStore) GetVersion(ctx context.Context, pageID uuid.UUID, versionNumber int) (*domain.PageImageVersion, error) {
	query := `
		SELECT id, page_id, version_number, image_path, is_current, created_at
		FROM page_image_versions
		WHERE page_id = $1 AND version_number = $2
	`

	var version domain.PageImageVersion
	err := s.db.QueryRowContext(ctx, query, pageID, versionNumber).Scan(
		&version.ID,
		&version.PageID,
		&version.VersionNumber,
		&version.ImagePath,
		&version.IsCurrent,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVersionNotFound
		}
		return nil, MapError(err)
	}
	return &version, nil
}

// ListVersions implements store.VersionStore.ListVersions
// Versions are returned newest first.
func (s *PostgresVersionStore) ListVersions(ctx context.Context, pageID uuid.UUID) ([]*domain.PageImageVersion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, page_id, version_number, image_path, is_current, created_at
		FROM page_image_versions
		WHERE page_id = $1
		ORDER BY version_number DESC
	`

	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		log.Error("failed to query image versions",
			slog.String("page_id", pageID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var versions []*domain.PageImageVersion
	for rows.Next() {
		var version domain.PageImageVersion
		err := rows.Scan(
			&version.ID,
			&version.PageID,
			&version.VersionNumber,
			&version.ImagePath,
			&version.IsCurrent,
			&version.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan version row", slog.String("error", err.Error()))
			return nil, err
		}
		versions = append(versions, &version)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	if versions == nil {
		versions = []*domain.PageImageVersion{}
	}
	return versions, nil
}

// WithTxVersionStore implements store.VersionStore.WithTxVersionStore
// It returns a new store instance that uses the provided transaction.
func (s *PostgresVersionStore) WithTxVersionStore(tx *sql.Tx) store.VersionStore {
	return &PostgresVersionStore{db: tx, logger: s.logger}
}
