package service

import (
	"errors"
	"fmt"
)

// Common service errors. Callers check these with errors.Is; unexpected
// failures are wrapped in a ServiceError carrying the operation name.
var (
	// ErrPageProjectMismatch indicates the page does not belong to the
	// project the operation was invoked for.
	ErrPageProjectMismatch = errors.New("page does not belong to project")

	// ErrNoCurrentVersion indicates a page has no image versions yet.
	ErrNoCurrentVersion = errors.New("page has no image versions")
)

// ServiceError is the error type for unexpected service failures.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
