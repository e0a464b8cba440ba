package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// PageImageTask regenerates or edits the image of a single page. The
// rerun is idempotent at the page level: it reads current page state and
// records a new version rather than overwriting anything, so earlier
// versions stay available for rollback.
type PageImageTask struct {
	id     uuid.UUID
	pageID uuid.UUID
	cfg    PageImageConfig

	taskStore TaskStore
	pageStore PageStore
	imageGen  generation.ImageGenerator
	artifacts ArtifactSaver
	resolver  FileResolver
	logger    *slog.Logger
}

// PageImageConfig bundles the knobs for a single-page image run.
type PageImageConfig struct {
	ProjectID uuid.UUID

	// EditInstruction switches the task into edit mode: the current
	// image is sent to the model along with the instruction. Empty
	// means regenerate from the page's description.
	EditInstruction string

	// AdditionalRefImages are extra reference image paths for edit mode.
	AdditionalRefImages []string

	TemplatePath      string
	AspectRatio       string
	Resolution        string
	ExtraRequirements string
	Language          string
}

// NewPageImageTask creates a single-page regenerate/edit task.
func NewPageImageTask(
	pageID uuid.UUID,
	cfg PageImageConfig,
	taskStore TaskStore,
	pageStore PageStore,
	imageGen generation.ImageGenerator,
	artifacts ArtifactSaver,
	resolver FileResolver,
	logger *slog.Logger,
) (*PageImageTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if pageStore == nil {
		return nil, ErrNilPageStore
	}
	if imageGen == nil || artifacts == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if pageID == uuid.Nil {
		return nil, domain.ErrEmptyPageID
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "2K"
	}

	taskType := TypePageImage
	if cfg.EditInstruction != "" {
		taskType = TypePageImageEdit
	}

	return &PageImageTask{
		id:        uuid.New(),
		pageID:    pageID,
		cfg:       cfg,
		taskStore: taskStore,
		pageStore: pageStore,
		imageGen:  imageGen,
		artifacts: artifacts,
		resolver:  resolver,
		logger:    logger.With("task_type", taskType, "page_id", pageID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *PageImageTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *PageImageTask) ProjectID() uuid.UUID { return t.cfg.ProjectID }

// Type returns the task type identifier.
func (t *PageImageTask) Type() string {
	if t.cfg.EditInstruction != "" {
		return TypePageImageEdit
	}
	return TypePageImage
}

// Preflight verifies the page belongs to the project and, in edit mode,
// that it already has a generated image.
func (t *PageImageTask) Preflight(ctx context.Context) error {
	page, err := t.pageStore.GetPage(ctx, t.pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page.ProjectID != t.cfg.ProjectID {
		return fmt.Errorf("page %s does not belong to project %s", t.pageID, t.cfg.ProjectID)
	}
	if t.cfg.EditInstruction != "" && page.GeneratedImagePath == "" {
		return fmt.Errorf("page must have a generated image before editing")
	}
	return nil
}

// Execute runs the single-page pipeline.
func (t *PageImageTask) Execute(ctx context.Context) error {
	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, 1); err != nil {
		return err
	}

	err := t.runOne(ctx)
	if err != nil {
		// The page keeps its own FAILED marker; the task error is
		// surfaced through the orchestrator.
		if updateErr := t.pageStore.UpdatePageStatus(ctx, t.pageID, domain.PageStatusFailed); updateErr != nil {
			t.logger.Error("failed to update page status", "error", updateErr)
		}
		if trackErr := tracker.RecordResult(ctx, true); trackErr != nil {
			t.logger.Error("failed to record progress", "error", trackErr)
		}
		return err
	}

	return tracker.RecordResult(ctx, false)
}

func (t *PageImageTask) runOne(ctx context.Context) error {
	page, err := t.pageStore.GetPage(ctx, t.pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}

	if err := t.pageStore.UpdatePageStatus(ctx, t.pageID, domain.PageStatusGenerating); err != nil {
		return fmt.Errorf("failed to mark page generating: %w", err)
	}

	req := generation.ImageRequest{
		AspectRatio: t.cfg.AspectRatio,
		Resolution:  t.cfg.Resolution,
	}

	if t.cfg.EditInstruction != "" {
		description, _ := page.GetDescriptionContent()
		req.Prompt = generation.EditImagePrompt(t.cfg.EditInstruction, description.Text)
		currentPath := page.GeneratedImagePath
		if t.resolver != nil {
			currentPath = t.resolver.AbsolutePath(currentPath)
		}
		req.RefImagePaths = append([]string{currentPath}, t.cfg.AdditionalRefImages...)
	} else {
		description, err := page.GetDescriptionContent()
		if err != nil {
			return fmt.Errorf("page has no description content: %w", err)
		}
		entry, _ := page.GetOutlineContent()
		req.Prompt = generation.ImagePrompt(entry, description.Text, page.OrderIndex+1,
			t.cfg.TemplatePath != "", t.cfg.ExtraRequirements, t.cfg.Language)
		if t.cfg.TemplatePath != "" {
			req.RefImagePaths = []string{t.cfg.TemplatePath}
		}
	}

	img, err := t.imageGen.GenerateImage(ctx, req)
	if err != nil {
		return err
	}

	if _, _, err := t.artifacts.SaveWithVersion(ctx, img, t.cfg.ProjectID, t.pageID); err != nil {
		return fmt.Errorf("failed to save image version: %w", err)
	}
	return nil
}
