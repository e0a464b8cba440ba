package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProjectStatus represents how far a slide project has progressed
// through the generation pipeline.
type ProjectStatus string

// Possible project status values. The pipeline moves a project forward
// through these states; a failed renovation or generation run resets the
// project to DRAFT so the user can resubmit.
const (
	ProjectStatusDraft                 ProjectStatus = "DRAFT"
	ProjectStatusOutlineGenerated      ProjectStatus = "OUTLINE_GENERATED"
	ProjectStatusDescriptionsGenerated ProjectStatus = "DESCRIPTIONS_GENERATED"
	ProjectStatusImagesGenerated       ProjectStatus = "IMAGES_GENERATED"
	ProjectStatusCompleted             ProjectStatus = "COMPLETED"
)

// Common validation errors for Project
var (
	ErrEmptyProjectID = errors.New("project ID cannot be empty")
)

// Project is one slide deck being generated. It owns an ordered set of
// Pages and carries the aggregated outline/description text produced by
// the renovation pipeline.
type Project struct {
	ID                 uuid.UUID     `json:"id"`
	Title              string        `json:"title"`
	Status             ProjectStatus `json:"status"`
	OutlineText        string        `json:"outline_text"`
	DescriptionText    string        `json:"description_text"`
	ExportAllowPartial bool          `json:"export_allow_partial"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewProject creates a new Project in DRAFT status.
func NewProject(title string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New(),
		Title:     title,
		Status:    ProjectStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the Project has valid data.
func (p *Project) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProjectID
	}
	if !isValidProjectStatus(p.Status) {
		return ErrInvalidProjectStatus
	}
	return nil
}

// UpdateStatus updates the project's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (p *Project) UpdateStatus(status ProjectStatus) error {
	if !isValidProjectStatus(status) {
		return ErrInvalidProjectStatus
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidProjectStatus checks if the given status is a valid ProjectStatus.
func isValidProjectStatus(status ProjectStatus) bool {
	switch status {
	case ProjectStatusDraft, ProjectStatusOutlineGenerated,
		ProjectStatusDescriptionsGenerated, ProjectStatusImagesGenerated,
		ProjectStatusCompleted:
		return true
	default:
		return false
	}
}
