package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task.
type Status string

// Possible task status values. Status moves monotonically
// PENDING -> PROCESSING -> {COMPLETED | FAILED}; a terminal task never
// transitions again.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Task type constants
const (
	TypeDescriptionGeneration = "description_generation"
	TypeImageGeneration       = "image_generation"
	TypePageImage             = "page_image"
	TypePageImageEdit         = "page_image_edit"
	TypeMaterialImage         = "material_image"
	TypeRenovation            = "renovation"
	TypeRenovationImg2Img     = "renovation_img2img"
	TypeExport                = "export"
)

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// ProjectID returns the project this task operates on
	ProjectID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// PreflightChecker is implemented by tasks that validate their inputs
// before any work starts. A preflight failure moves the task directly
// from PENDING to FAILED without it ever entering PROCESSING, so a
// structurally invalid batch is never partially processed.
type PreflightChecker interface {
	Preflight(ctx context.Context) error
}

// Record is the persisted state of a task as seen by polling clients.
type Record struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Type         string     `json:"type"`
	Status       Status     `json:"status"`
	Progress     Progress   `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewRecord creates a pending task record for the given type and project.
func NewRecord(projectID uuid.UUID, taskType string) *Record {
	return &Record{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      taskType,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// TaskStore defines the interface for persisting tasks and their progress.
type TaskStore interface {
	// CreateTask persists a new task record
	CreateTask(ctx context.Context, record *Record) error

	// GetTask retrieves a task record by ID
	GetTask(ctx context.Context, taskID uuid.UUID) (*Record, error)

	// UpdateTaskStatus updates the status of a task. Terminal statuses
	// (COMPLETED, FAILED) also set completed_at.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status Status, errorMsg string) error

	// GetTaskProgress reads the current authoritative progress record
	GetTaskProgress(ctx context.Context, taskID uuid.UUID) (Progress, error)

	// SetTaskProgress overwrites the task's progress record
	SetTaskProgress(ctx context.Context, taskID uuid.UUID, progress Progress) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
