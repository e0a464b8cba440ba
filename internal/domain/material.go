package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Material
var (
	ErrEmptyMaterialID       = errors.New("material ID cannot be empty")
	ErrEmptyMaterialFilename = errors.New("material filename cannot be empty")
)

// Material is a generated or uploaded image that is not tied to a
// specific page. ProjectID is nil for materials shared across projects.
type Material struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty"`
	Filename     string     `json:"filename"`
	RelativePath string     `json:"relative_path"`
	URL          string     `json:"url"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewMaterial creates a new Material. projectID may be nil for a global
// material.
func NewMaterial(projectID *uuid.UUID, filename, relativePath, url string) (*Material, error) {
	material := &Material{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Filename:     filename,
		RelativePath: relativePath,
		URL:          url,
		CreatedAt:    time.Now().UTC(),
	}
	if err := material.Validate(); err != nil {
		return nil, err
	}
	return material, nil
}

// Validate checks if the Material has valid data.
func (m *Material) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMaterialID
	}
	if m.Filename == "" {
		return ErrEmptyMaterialFilename
	}
	return nil
}
