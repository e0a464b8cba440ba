package task

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// resolutionMismatchWarning is surfaced once per run when the provider
// returns images smaller than the requested resolution.
const resolutionMismatchWarning = "generated image resolution does not match the requested resolution"

// ImageGenerationTask renders one image per page through the image
// generator and records each as a new current version. Page failures are
// tolerated; the project only advances to COMPLETED when none failed.
type ImageGenerationTask struct {
	id        uuid.UUID
	projectID uuid.UUID
	cfg       ImageGenerationConfig

	taskStore    TaskStore
	pageStore    PageStore
	projectStore ProjectStore
	imageGen     generation.ImageGenerator
	artifacts    ArtifactSaver
	logger       *slog.Logger
}

// ImageGenerationConfig bundles the knobs for an image generation run.
type ImageGenerationConfig struct {
	Outline domain.Outline

	// PageIDs optionally restricts the run to a subset of pages.
	// Empty means all pages of the project.
	PageIDs []uuid.UUID

	// TemplatePath is the style reference image, empty when the run
	// does not use a template.
	TemplatePath string

	AspectRatio       string
	Resolution        string
	ExtraRequirements string
	Language          string
	MaxWorkers        int
}

// NewImageGenerationTask creates an image generation task.
func NewImageGenerationTask(
	projectID uuid.UUID,
	cfg ImageGenerationConfig,
	taskStore TaskStore,
	pageStore PageStore,
	projectStore ProjectStore,
	imageGen generation.ImageGenerator,
	artifacts ArtifactSaver,
	logger *slog.Logger,
) (*ImageGenerationTask, error) {
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
	if projectID == uuid.Nil {
		return nil, domain.ErrEmptyProjectID
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "2K"
	}

	return &ImageGenerationTask{
		id:           uuid.New(),
		projectID:    projectID,
		cfg:          cfg,
		taskStore:    taskStore,
		pageStore:    pageStore,
		projectStore: projectStore,
		imageGen:     imageGen,
		artifacts:    artifacts,
		logger:       logger.With("task_type", TypeImageGeneration, "project_id", projectID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *ImageGenerationTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *ImageGenerationTask) ProjectID() uuid.UUID { return t.projectID }

// Type returns the task type identifier.
func (t *ImageGenerationTask) Type() string { return TypeImageGeneration }

// Preflight verifies the batch is structurally sound: there are pages to
// process and every selected page maps onto an outline entry.
func (t *ImageGenerationTask) Preflight(ctx context.Context) error {
	pages, err := t.pageStore.ListPagesByIDs(ctx, t.projectID, t.cfg.PageIDs)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	entries := t.cfg.Outline.Flatten()
	for _, page := range pages {
		if page.OrderIndex >= len(entries) {
			return fmt.Errorf("%w: page index %d outside outline of length %d",
				ErrPageCountMismatch, page.OrderIndex, len(entries))
		}
	}
	return nil
}

// Execute runs the image generation pipeline.
func (t *ImageGenerationTask) Execute(ctx context.Context) error {
	pages, err := t.pageStore.ListPagesByIDs(ctx, t.projectID, t.cfg.PageIDs)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	entries := t.cfg.Outline.Flatten()

	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, len(pages)); err != nil {
		return err
	}

	// Filtered pages are matched to outline entries by order index, not
	// by position in the filtered slice.
	entryByPage := make(map[uuid.UUID]domain.OutlineEntry, len(pages))
	pageIDs := make([]uuid.UUID, len(pages))
	for i, page := range pages {
		pageIDs[i] = page.ID
		entryByPage[page.ID] = entries[page.OrderIndex]
	}

	type pageImageOutcome struct {
		mismatched bool
	}

	failed := 0
	mismatched := 0
	results := FanOut(ctx, pageIDs, t.cfg.MaxWorkers, func(ctx context.Context, pageID uuid.UUID, index int) (any, error) {
		img, isMatch, err := t.generateOne(ctx, pageID, entryByPage[pageID], index)
		if err != nil {
			return nil, err
		}
		if _, _, err := t.artifacts.SaveWithVersion(ctx, img, t.projectID, pageID); err != nil {
			return nil, fmt.Errorf("failed to save image version: %w", err)
		}
		return pageImageOutcome{mismatched: !isMatch}, nil
	})

	for result := range results {
		if result.Err != nil {
			t.logger.Error("page image generation failed",
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

		outcome := result.Value.(pageImageOutcome)
		if outcome.mismatched {
			mismatched++
		}
		if err := tracker.Update(ctx, func(p *Progress) {
			if p.Completed+p.Failed < p.Total {
				p.Completed++
			}
			if outcome.mismatched {
				if _, ok := p.GetExtra("warning_message"); !ok {
					p.SetExtra("warning_message", resolutionMismatchWarning)
				}
			}
		}); err != nil {
			t.logger.Error("failed to record progress", "error", err)
		}
	}

	t.logger.Info("image generation settled",
		"pages", len(pages), "failed", failed, "resolution_mismatched", mismatched)

	if failed == 0 && t.projectStore != nil {
		if err := t.projectStore.UpdateProjectStatus(ctx, t.projectID, domain.ProjectStatusCompleted); err != nil {
			t.logger.Error("failed to advance project status", "error", err)
		}
	}

	return nil
}

// generateOne is the unit of work for a single page. It looks the page
// up fresh in its own scope, renders the image, and reports whether the
// returned resolution matches the request.
func (t *ImageGenerationTask) generateOne(ctx context.Context, pageID uuid.UUID, entry domain.OutlineEntry, index int) (image.Image, bool, error) {
	page, err := t.pageStore.GetPage(ctx, pageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load page: %w", err)
	}

	if err := t.pageStore.UpdatePageStatus(ctx, pageID, domain.PageStatusGenerating); err != nil {
		return nil, false, fmt.Errorf("failed to mark page generating: %w", err)
	}

	description, err := page.GetDescriptionContent()
	if err != nil {
		return nil, false, fmt.Errorf("page has no description content: %w", err)
	}

	prompt := generation.ImagePrompt(entry, description.Text, index,
		t.cfg.TemplatePath != "", t.cfg.ExtraRequirements, t.cfg.Language)

	req := generation.ImageRequest{
		Prompt:      prompt,
		AspectRatio: t.cfg.AspectRatio,
		Resolution:  t.cfg.Resolution,
	}
	if t.cfg.TemplatePath != "" {
		req.RefImagePaths = []string{t.cfg.TemplatePath}
	}

	img, err := t.imageGen.GenerateImage(ctx, req)
	if err != nil {
		return nil, false, err
	}

	actual, isMatch := checkResolution(img, t.cfg.Resolution)
	if !isMatch {
		t.logger.Warn("resolution mismatch",
			"page_id", pageID, "requested", t.cfg.Resolution, "actual", actual)
	}
	return img, isMatch, nil
}

// checkResolution compares the generated image's width against the
// requested resolution class. Returns the actual dimensions and whether
// they satisfy the request.
func checkResolution(img image.Image, resolution string) (string, bool) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	actual := fmt.Sprintf("%dx%d", width, height)

	var expectedWidth int
	switch resolution {
	case "1K":
		expectedWidth = 1024
	case "2K":
		expectedWidth = 2048
	case "4K":
		expectedWidth = 4096
	default:
		return actual, true
	}
	return actual, width >= expectedWidth
}
