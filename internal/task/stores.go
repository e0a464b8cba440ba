package task

import (
	"context"
	"image"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// PageStore is the page persistence the pipelines need. Workers call it
// with fresh lookups by ID inside their own unit of work; the database
// is the only store shared across goroutines.
type PageStore interface {
	// GetPage retrieves a page by its ID
	GetPage(ctx context.Context, pageID uuid.UUID) (*domain.Page, error)

	// ListPages retrieves all pages of a project ordered by order_index
	ListPages(ctx context.Context, projectID uuid.UUID) ([]*domain.Page, error)

	// ListPagesByIDs retrieves the given pages of a project ordered by
	// order_index. An empty ids slice means all pages.
	ListPagesByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*domain.Page, error)

	// UpdatePageStatus updates only the page's status
	UpdatePageStatus(ctx context.Context, pageID uuid.UUID, status domain.PageStatus) error

	// UpdatePageDescription stores the page's description content and status
	UpdatePageDescription(ctx context.Context, pageID uuid.UUID, content domain.DescriptionContent, status domain.PageStatus) error

	// UpdatePageContent stores outline entry, description, and status in
	// one write (renovation pipeline)
	UpdatePageContent(ctx context.Context, pageID uuid.UUID, entry domain.OutlineEntry, content domain.DescriptionContent, status domain.PageStatus) error
}

// ProjectStore is the project persistence the pipelines need.
type ProjectStore interface {
	// GetProject retrieves a project by its ID
	GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)

	// UpdateProjectStatus updates the project's status
	UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status domain.ProjectStatus) error

	// UpdateProjectTexts stores the aggregated outline/description text
	// and moves the project's status in one write
	UpdateProjectTexts(ctx context.Context, projectID uuid.UUID, outlineText, descriptionText string, status domain.ProjectStatus) error
}

// MaterialStore persists generated material images.
type MaterialStore interface {
	// CreateMaterial persists a new material record
	CreateMaterial(ctx context.Context, material *domain.Material) error
}

// ArtifactSaver durably records a newly generated page image as a new
// current version. Implemented by service.ArtifactService.
type ArtifactSaver interface {
	// SaveWithVersion writes the full-resolution artifact and its
	// compressed preview, creates the next version record as current,
	// and updates the page's cached paths and status, atomically.
	SaveWithVersion(ctx context.Context, img image.Image, projectID, pageID uuid.UUID) (imagePath string, versionNumber int, err error)
}

// FileResolver resolves stored relative artifact paths to absolute ones.
type FileResolver interface {
	AbsolutePath(relativePath string) string
}
