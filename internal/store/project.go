package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// ProjectStore defines the interface for project data persistence.
type ProjectStore interface {
	// CreateProject saves a new project.
	CreateProject(ctx context.Context, project *domain.Project) error

	// GetProject retrieves a project by its unique ID.
	// Returns ErrProjectNotFound if the project does not exist.
	GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)

	// UpdateProjectStatus updates only the project's status.
	UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status domain.ProjectStatus) error

	// UpdateProjectTexts stores the aggregated outline and description
	// texts and moves the project's status in one write.
	UpdateProjectTexts(ctx context.Context, projectID uuid.UUID, outlineText, descriptionText string, status domain.ProjectStatus) error

	// WithTxProjectStore returns a new ProjectStore instance that uses
	// the provided transaction.
	WithTxProjectStore(tx *sql.Tx) ProjectStore
}
