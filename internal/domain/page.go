package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PageStatus represents the furthest pipeline stage a page has
// successfully completed. Each page moves through the pipeline
// independently of its siblings.
type PageStatus string

// Possible page status values
const (
	PageStatusPending              PageStatus = "PENDING"
	PageStatusGenerating           PageStatus = "GENERATING"
	PageStatusDescriptionGenerated PageStatus = "DESCRIPTION_GENERATED"
	PageStatusCompleted            PageStatus = "COMPLETED"
	PageStatusFailed               PageStatus = "FAILED"
)

// Common validation errors for Page
var (
	ErrEmptyPageID        = errors.New("page ID cannot be empty")
	ErrEmptyPageProjectID = errors.New("page project ID cannot be empty")
	ErrNegativeOrderIndex = errors.New("page order index cannot be negative")
)

// DescriptionContent is the structured per-page description produced by
// the text generator, stored as JSON on the page row.
type DescriptionContent struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// OutlineEntry holds the outline content assigned to a single page:
// its title and bullet points.
type OutlineEntry struct {
	Title  string   `json:"title"`
	Points []string `json:"points,omitempty"`
}

// Page is one slide within a project. OrderIndex is the stable,
// zero-based ordering key that matches the page 1:1 to its outline entry.
type Page struct {
	ID                 uuid.UUID  `json:"id"`
	ProjectID          uuid.UUID  `json:"project_id"`
	OrderIndex         int        `json:"order_index"`
	Status             PageStatus `json:"status"`
	DescriptionContent []byte     `json:"description_content,omitempty"`
	OutlineContent     []byte     `json:"outline_content,omitempty"`
	GeneratedImagePath string     `json:"generated_image_path,omitempty"`
	CachedImagePath    string     `json:"cached_image_path,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewPage creates a new Page in PENDING status.
func NewPage(projectID uuid.UUID, orderIndex int) (*Page, error) {
	now := time.Now().UTC()
	page := &Page{
		ID:         uuid.New(),
		ProjectID:  projectID,
		OrderIndex: orderIndex,
		Status:     PageStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return page, nil
}

// Validate checks if the Page has valid data.
func (p *Page) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPageID
	}
	if p.ProjectID == uuid.Nil {
		return ErrEmptyPageProjectID
	}
	if p.OrderIndex < 0 {
		return ErrNegativeOrderIndex
	}
	if !isValidPageStatus(p.Status) {
		return ErrInvalidPageStatus
	}
	return nil
}

// UpdateStatus updates the page's status and the UpdatedAt timestamp.
func (p *Page) UpdateStatus(status PageStatus) error {
	if !isValidPageStatus(status) {
		return ErrInvalidPageStatus
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetDescriptionContent serializes and stores the structured description.
func (p *Page) SetDescriptionContent(content DescriptionContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	p.DescriptionContent = data
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// GetDescriptionContent deserializes the stored description content.
// Returns ErrEmptyContent if the page has no description yet.
func (p *Page) GetDescriptionContent() (DescriptionContent, error) {
	var content DescriptionContent
	if len(p.DescriptionContent) == 0 {
		return content, ErrEmptyContent
	}
	if err := json.Unmarshal(p.DescriptionContent, &content); err != nil {
		return content, err
	}
	return content, nil
}

// SetOutlineContent serializes and stores the page's outline entry.
func (p *Page) SetOutlineContent(entry OutlineEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	p.OutlineContent = data
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// GetOutlineContent deserializes the stored outline entry.
func (p *Page) GetOutlineContent() (OutlineEntry, error) {
	var entry OutlineEntry
	if len(p.OutlineContent) == 0 {
		return entry, ErrEmptyContent
	}
	if err := json.Unmarshal(p.OutlineContent, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// isValidPageStatus checks if the given status is a valid PageStatus.
func isValidPageStatus(status PageStatus) bool {
	switch status {
	case PageStatusPending, PageStatusGenerating, PageStatusDescriptionGenerated,
		PageStatusCompleted, PageStatusFailed:
		return true
	default:
		return false
	}
}
