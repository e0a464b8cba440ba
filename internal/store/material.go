package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// MaterialStore defines the interface for material data persistence.
type MaterialStore interface {
	// CreateMaterial saves a new material record.
	CreateMaterial(ctx context.Context, material *domain.Material) error

	// GetMaterial retrieves a material by its unique ID.
	// Returns ErrMaterialNotFound if the material does not exist.
	GetMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error)

	// ListMaterials retrieves materials for a project, newest first.
	// A nil projectID lists global materials.
	ListMaterials(ctx context.Context, projectID *uuid.UUID) ([]*domain.Material, error)

	// DeleteMaterial removes a material record.
	// Returns ErrMaterialNotFound if the material does not exist.
	DeleteMaterial(ctx context.Context, materialID uuid.UUID) error

	// WithTxMaterialStore returns a new MaterialStore instance that uses
	// the provided transaction.
	WithTxMaterialStore(tx *sql.Tx) MaterialStore
}
