package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// DescriptionGenerationTask generates the per-page visual description
// for every page of a project, fanning out over pages on a bounded pool.
// Individual page failures are tolerated: they mark the page FAILED and
// count against the failed counter, but the task still completes. The
// project only advances to DESCRIPTIONS_GENERATED when no page failed.
type DescriptionGenerationTask struct {
	id         uuid.UUID
	projectID  uuid.UUID
	outline    domain.Outline
	language   string
	maxWorkers int

	taskStore    TaskStore
	pageStore    PageStore
	projectStore ProjectStore
	textGen      generation.TextGenerator
	logger       *slog.Logger
}

// DescriptionGenerationConfig bundles the knobs for a description run.
type DescriptionGenerationConfig struct {
	Outline    domain.Outline
	Language   string
	MaxWorkers int
}

// NewDescriptionGenerationTask creates a description generation task.
func NewDescriptionGenerationTask(
	projectID uuid.UUID,
	cfg DescriptionGenerationConfig,
	taskStore TaskStore,
	pageStore PageStore,
	projectStore ProjectStore,
	textGen generation.TextGenerator,
	logger *slog.Logger,
) (*DescriptionGenerationTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if pageStore == nil {
		return nil, ErrNilPageStore
	}
	if textGen == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if projectID == uuid.Nil {
		return nil, domain.ErrEmptyProjectID
	}
	if err := cfg.Outline.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}

	return &DescriptionGenerationTask{
		id:           uuid.New(),
		projectID:    projectID,
		outline:      cfg.Outline,
		language:     cfg.Language,
		maxWorkers:   cfg.MaxWorkers,
		taskStore:    taskStore,
		pageStore:    pageStore,
		projectStore: projectStore,
		textGen:      textGen,
		logger:       logger.With("task_type", TypeDescriptionGeneration, "project_id", projectID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *DescriptionGenerationTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *DescriptionGenerationTask) ProjectID() uuid.UUID { return t.projectID }

// Type returns the task type identifier.
func (t *DescriptionGenerationTask) Type() string { return TypeDescriptionGeneration }

// Preflight rejects the batch before any work starts when the project's
// page count does not match the outline length.
func (t *DescriptionGenerationTask) Preflight(ctx context.Context) error {
	pages, err := t.pageStore.ListPages(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	entries := t.outline.Flatten()
	if len(pages) != len(entries) {
		return fmt.Errorf("%w: %d pages, %d outline entries",
			ErrPageCountMismatch, len(pages), len(entries))
	}
	return nil
}

// Execute runs the description generation pipeline.
func (t *DescriptionGenerationTask) Execute(ctx context.Context) error {
	pages, err := t.pageStore.ListPages(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	entries := t.outline.Flatten()

	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, len(pages)); err != nil {
		return err
	}

	// Pages are matched 1:1 by position to outline entries.
	entryByPage := make(map[uuid.UUID]domain.OutlineEntry, len(pages))
	pageIDs := make([]uuid.UUID, len(pages))
	for i, page := range pages {
		pageIDs[i] = page.ID
		entryByPage[page.ID] = entries[i]
	}

	failed := 0
	results := FanOut(ctx, pageIDs, t.maxWorkers, func(ctx context.Context, pageID uuid.UUID, index int) (any, error) {
		entry := entryByPage[pageID]
		prompt := generation.PageDescriptionPrompt(t.outline, entry, index, len(pages), t.language)
		text, err := t.textGen.GenerateText(ctx, prompt, generation.TextOptions{Language: t.language})
		if err != nil {
			return nil, err
		}
		return domain.DescriptionContent{
			Text:        text,
			GeneratedAt: time.Now().UTC(),
		}, nil
	})

	// Consume in completion order, updating page state and progress
	// immediately so the run is observable while it executes.
	for result := range results {
		if result.Err != nil {
			t.logger.Error("page description failed",
				"page_id", result.PageID, "error", result.Err)
			if err := t.pageStore.UpdatePageStatus(ctx, result.PageID, domain.PageStatusFailed); err != nil {
				t.logger.Error("failed to update page status", "page_id", result.PageID, "error", err)
			}
			failed++
			if err := tracker.RecordResult(ctx, true); err != nil {
				t.logger.Error("failed to record progress", "error", err)
			}
			continue
		}

		content := result.Value.(domain.DescriptionContent)
		if err := t.pageStore.UpdatePageDescription(ctx, result.PageID, content, domain.PageStatusDescriptionGenerated); err != nil {
			t.logger.Error("failed to store page description", "page_id", result.PageID, "error", err)
			failed++
			if err := tracker.RecordResult(ctx, true); err != nil {
				t.logger.Error("failed to record progress", "error", err)
			}
			continue
		}
		if err := tracker.RecordResult(ctx, false); err != nil {
			t.logger.Error("failed to record progress", "error", err)
		}
	}

	t.logger.Info("description generation settled",
		"pages", len(pages), "failed", failed)

	if failed == 0 && t.projectStore != nil {
		if err := t.projectStore.UpdateProjectStatus(ctx, t.projectID, domain.ProjectStatusDescriptionsGenerated); err != nil {
			t.logger.Error("failed to advance project status", "error", err)
		}
	}

	return nil
}
