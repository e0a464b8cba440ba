package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// VersionStore defines the interface for page image version persistence.
// Version numbers are allocated with a MAX query, never a count, so a
// deleted version's number is never reused.
type VersionStore interface {
	// CreateVersion saves a new version record.
	CreateVersion(ctx context.Context, version *domain.PageImageVersion) error

	// MaxVersionNumber returns the highest version number recorded for
	// the page, or 0 when the page has no versions yet.
	MaxVersionNumber(ctx context.Context, pageID uuid.UUID) (int, error)

	// MarkAllNotCurrent clears the is_current flag on every version of
	// the page in one statement.
	MarkAllNotCurrent(ctx context.Context, pageID uuid.UUID) error

	// SetCurrent marks the given version current.
	// Returns ErrVersionNotFound if it does not exist.
	SetCurrent(ctx context.Context, versionID uuid.UUID) error

	// GetVersion retrieves one version of a page by its number.
	// Returns ErrVersionNotFound if it does not exist.
	GetVersion(ctx context.Context, pageID uuid.UUID, versionNumber int) (*domain.PageImageVersion, error)

	// ListVersions retrieves all versions of a page, newest first.
	ListVersions(ctx context.Context, pageID uuid.UUID) ([]*domain.PageImageVersion, error)

	// WithTxVersionStore returns a new VersionStore instance that uses
	// the provided transaction. Version allocation and the current-flag
	// swap must run inside one transaction.
	WithTxVersionStore(tx *sql.Tx) VersionStore
}
