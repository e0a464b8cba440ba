package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by pipelines and their preflight checks.
var (
	// ErrPageCountMismatch is the structural mismatch error: the number of
	// pages to process does not equal the number of outline entries. It is
	// raised before any work starts; a structurally invalid batch is never
	// partially processed.
	ErrPageCountMismatch = errors.New("page count does not match outline length")

	// ErrNoPages is returned when a project has no pages to process.
	ErrNoPages = errors.New("project has no pages to process")

	// ErrNoImages is returned when an export finds no generated images.
	ErrNoImages = errors.New("no generated images found for project")

	// ErrNilStore and friends guard task constructors against missing
	// dependencies.
	ErrNilStore     = errors.New("task store cannot be nil")
	ErrNilPageStore = errors.New("page store cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// PageError records a single page's failure inside a fan-out run. Page
// failures are contained: they contribute to the failed counter but do
// not abort sibling in-flight work.
type PageError struct {
	PageID uuid.UUID
	Index  int
	Err    error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Index, e.PageID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *PageError) Unwrap() error {
	return e.Err
}

// BatchError is the aggregate fail-fast error raised after a stage
// settles with failures and the task does not allow partial results.
// First carries the first page failure as the representative reason.
type BatchError struct {
	Failed int
	Total  int
	First  error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.First != nil {
		return fmt.Sprintf("%d/%d pages failed: %v", e.Failed, e.Total, e.First)
	}
	return fmt.Sprintf("%d/%d pages failed", e.Failed, e.Total)
}

// Unwrap returns the representative page failure.
func (e *BatchError) Unwrap() error {
	return e.First
}
