package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for PageImageVersion
var (
	ErrEmptyVersionID     = errors.New("image version ID cannot be empty")
	ErrEmptyVersionPageID = errors.New("image version page ID cannot be empty")
	ErrEmptyImagePath     = errors.New("image path cannot be empty")
)

// PageImageVersion is one durably recorded generation of a page's image.
// Version numbers are strictly increasing per page and never reused, even
// after deletions: the next number is always computed as
// max(existing versions) + 1, not count + 1. For a given page at most one
// version has IsCurrent set.
type PageImageVersion struct {
	ID            uuid.UUID `json:"id"`
	PageID        uuid.UUID `json:"page_id"`
	VersionNumber int       `json:"version_number"`
	ImagePath     string    `json:"image_path"`
	IsCurrent     bool      `json:"is_current"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewPageImageVersion creates a new current version record for a page.
func NewPageImageVersion(pageID uuid.UUID, versionNumber int, imagePath string) (*PageImageVersion, error) {
	version := &PageImageVersion{
		ID:            uuid.New(),
		PageID:        pageID,
		VersionNumber: versionNumber,
		ImagePath:     imagePath,
		IsCurrent:     true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}
	return version, nil
}

// Validate checks if the PageImageVersion has valid data.
func (v *PageImageVersion) Validate() error {
	if v.ID == uuid.Nil {
		return ErrEmptyVersionID
	}
	if v.PageID == uuid.Nil {
		return ErrEmptyVersionPageID
	}
	if v.VersionNumber < 1 {
		return ErrInvalidVersionNumber
	}
	if v.ImagePath == "" {
		return ErrEmptyImagePath
	}
	return nil
}
