package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// PageStore defines the interface for page data persistence.
type PageStore interface {
	// CreatePages saves multiple pages in one statement. Returns
	// ErrOrderIndexExists if a page with the same project and order
	// index already exists.
	CreatePages(ctx context.Context, pages []*domain.Page) error

	// GetPage retrieves a page by its unique ID.
	// Returns ErrPageNotFound if the page does not exist.
	GetPage(ctx context.Context, pageID uuid.UUID) (*domain.Page, error)

	// GetPageForUpdate retrieves a page and locks its row for the
	// duration of the surrounding transaction. Must be called on a
	// transactional store obtained via WithTxPageStore.
	GetPageForUpdate(ctx context.Context, pageID uuid.UUID) (*domain.Page, error)

	// ListPages retrieves all pages of a project ordered by order_index.
	ListPages(ctx context.Context, projectID uuid.UUID) ([]*domain.Page, error)

	// ListPagesByIDs retrieves the given pages of a project ordered by
	// order_index. An empty ids slice means all pages.
	ListPagesByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*domain.Page, error)

	// UpdatePageStatus updates only the page's status.
	// Returns ErrPageNotFound if the page does not exist.
	UpdatePageStatus(ctx context.Context, pageID uuid.UUID, status domain.PageStatus) error

	// UpdatePageDescription stores the page's description content and
	// status in one write.
	UpdatePageDescription(ctx context.Context, pageID uuid.UUID, content domain.DescriptionContent, status domain.PageStatus) error

	// UpdatePageContent stores outline entry, description content, and
	// status in one write.
	UpdatePageContent(ctx context.Context, pageID uuid.UUID, entry domain.OutlineEntry, content domain.DescriptionContent, status domain.PageStatus) error

	// UpdateImagePaths stores the page's current image and preview paths
	// together with its status.
	UpdateImagePaths(ctx context.Context, pageID uuid.UUID, imagePath, cachedPath string, status domain.PageStatus) error

	// WithTxPageStore returns a new PageStore instance that uses the
	// provided transaction. The transaction is created and managed by
	// the caller, typically through RunInTransaction.
	WithTxPageStore(tx *sql.Tx) PageStore
}
