package service

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
)

// VersionRepository defines the version persistence the artifact service
// needs, scoped to the service layer.
type VersionRepository interface {
	// CreateVersion saves a new version record
	CreateVersion(ctx context.Context, version *domain.PageImageVersion) error

	// MaxVersionNumber returns the highest version number for the page,
	// or 0 when none exist
	MaxVersionNumber(ctx context.Context, pageID uuid.UUID) (int, error)

	// MarkAllNotCurrent clears is_current on every version of the page
	MarkAllNotCurrent(ctx context.Context, pageID uuid.UUID) error

	// SetCurrent marks the given version current
	SetCurrent(ctx context.Context, versionID uuid.UUID) error

	// GetVersion retrieves one version of a page by number
	GetVersion(ctx context.Context, pageID uuid.UUID, versionNumber int) (*domain.PageImageVersion, error)

	// ListVersions retrieves all versions of a page, newest first
	ListVersions(ctx context.Context, pageID uuid.UUID) ([]*domain.PageImageVersion, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx *sql.Tx) VersionRepository
}

// PageRepository defines the page persistence the artifact service
// needs.
type PageRepository interface {
	// GetForUpdate retrieves the page and locks its row for the
	// surrounding transaction
	GetForUpdate(ctx context.Context, pageID uuid.UUID) (*domain.Page, error)

	// UpdateImagePaths stores the page's image and preview paths with
	// its status
	UpdateImagePaths(ctx context.Context, pageID uuid.UUID, imagePath, cachedPath string, status domain.PageStatus) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx *sql.Tx) PageRepository

	// DB returns the underlying database connection
	DB() *sql.DB
}

// ArtifactFileStore is the filesystem side of artifact persistence.
// Implemented by FileService.
type ArtifactFileStore interface {
	SavePageImage(img image.Image, projectID, pageID uuid.UUID, versionNumber int) (imagePath, cachedPath string, err error)
}

// ArtifactService durably records generated page images as immutable,
// numbered versions. At most one version per page is current, and
// version numbers never repeat even after deletions: the next number is
// always max + 1 within the same transaction that inserts it.
type ArtifactService struct {
	versionRepo VersionRepository
	pageRepo    PageRepository
	files       ArtifactFileStore
	logger      *slog.Logger
}

// NewArtifactService creates a new ArtifactService.
// It returns an error if any required dependency is nil.
func NewArtifactService(
	versionRepo VersionRepository,
	pageRepo PageRepository,
	files ArtifactFileStore,
	logger *slog.Logger,
) (*ArtifactService, error) {
	if versionRepo == nil {
		return nil, domain.NewValidationError("versionRepo", "cannot be nil", domain.ErrValidation)
	}
	if pageRepo == nil {
		return nil, domain.NewValidationError("pageRepo", "cannot be nil", domain.ErrValidation)
	}
	if files == nil {
		return nil, domain.NewValidationError("files", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactService{
		versionRepo: versionRepo,
		pageRepo:    pageRepo,
		files:       files,
		logger:      logger.With(slog.String("component", "artifact_service")),
	}, nil
}

// SaveWithVersion records img as the page's next current version. The
// page row is locked first, so concurrent saves for the same page
// serialize and each gets its own number; saves for different pages do
// not contend. The file writes happen inside the transaction: if either
// write fails, no database state changes and no version is consumed.
func (s *ArtifactService) SaveWithVersion(ctx context.Context, img image.Image, projectID, pageID uuid.UUID) (string, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var imagePath string
	var versionNumber int

	err := store.RunInTransaction(ctx, s.pageRepo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txVersions := s.versionRepo.WithTx(tx)
		txPages := s.pageRepo.WithTx(tx)

		page, err := txPages.GetForUpdate(ctx, pageID)
		if err != nil {
			return NewServiceError("save_artifact", "failed to lock page", err)
		}
		if page.ProjectID != projectID {
			return fmt.Errorf("%w: page %s, project %s", ErrPageProjectMismatch, pageID, projectID)
		}

		maxVersion, err := txVersions.MaxVersionNumber(ctx, pageID)
		if err != nil {
			return NewServiceError("save_artifact", "failed to read version number", err)
		}
		versionNumber = maxVersion + 1

		var cachedPath string
		imagePath, cachedPath, err = s.files.SavePageImage(img, projectID, pageID, versionNumber)
		if err != nil {
			return NewServiceError("save_artifact", "failed to write image files", err)
		}

		if err := txVersions.MarkAllNotCurrent(ctx, pageID); err != nil {
			return NewServiceError("save_artifact", "failed to retire old versions", err)
		}

		version, err := domain.NewPageImageVersion(pageID, versionNumber, imagePath)
		if err != nil {
			return NewServiceError("save_artifact", "invalid version record", err)
		}
		if err := txVersions.CreateVersion(ctx, version); err != nil {
			return NewServiceError("save_artifact", "failed to save version record", err)
		}

		if err := txPages.UpdateImagePaths(ctx, pageID, imagePath, cachedPath, domain.PageStatusCompleted); err != nil {
			return NewServiceError("save_artifact", "failed to update page paths", err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	log.Debug("page image version saved",
		slog.String("page_id", pageID.String()),
		slog.Int("version", versionNumber))
	return imagePath, versionNumber, nil
}

// RestoreVersion makes an older version current again and points the
// page back at its files. The preview path is derived from the stored
// image path.
func (s *ArtifactService) RestoreVersion(ctx context.Context, pageID uuid.UUID, versionNumber int) (*domain.PageImageVersion, error) {
	var restored *domain.PageImageVersion

	err := store.RunInTransaction(ctx, s.pageRepo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txVersions := s.versionRepo.WithTx(tx)
		txPages := s.pageRepo.WithTx(tx)

		if _, err := txPages.GetForUpdate(ctx, pageID); err != nil {
			return NewServiceError("restore_version", "failed to lock page", err)
		}

		version, err := txVersions.GetVersion(ctx, pageID, versionNumber)
		if err != nil {
			return NewServiceError("restore_version", "version not found", err)
		}

		if err := txVersions.MarkAllNotCurrent(ctx, pageID); err != nil {
			return NewServiceError("restore_version", "failed to retire versions", err)
		}
		if err := txVersions.SetCurrent(ctx, version.ID); err != nil {
			return NewServiceError("restore_version", "failed to mark version current", err)
		}

		cachedPath := cachedPathFor(version.ImagePath)
		if err := txPages.UpdateImagePaths(ctx, pageID, version.ImagePath, cachedPath, domain.PageStatusCompleted); err != nil {
			return NewServiceError("restore_version", "failed to update page paths", err)
		}

		version.IsCurrent = true
		restored = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// ListVersions returns a page's version history, newest first.
func (s *ArtifactService) ListVersions(ctx context.Context, pageID uuid.UUID) ([]*domain.PageImageVersion, error) {
	return s.versionRepo.ListVersions(ctx, pageID)
}

// cachedPathFor derives the preview path from an image path:
// .../v3.png -> .../cache/v3.jpg.
func cachedPathFor(imagePath string) string {
	dir := path.Dir(imagePath)
	base := strings.TrimSuffix(path.Base(imagePath), path.Ext(imagePath))
	return path.Join(dir, "cache", base+".jpg")
}
