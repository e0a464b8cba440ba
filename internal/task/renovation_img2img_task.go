package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// RenovationImg2ImgTask beautifies each page's existing image directly
// through image-to-image editing, skipping document parsing entirely.
// Each beautified image lands as a new current version, so the original
// renders remain available for rollback.
//
// Like RenovationTask this is all-or-nothing: any page failure fails the
// task and rolls the project back to DRAFT.
type RenovationImg2ImgTask struct {
	id        uuid.UUID
	projectID uuid.UUID
	cfg       RenovationImg2ImgConfig

	taskStore    TaskStore
	pageStore    PageStore
	projectStore ProjectStore
	imageGen     generation.ImageGenerator
	artifacts    ArtifactSaver
	resolver     FileResolver
	logger       *slog.Logger
}

// RenovationImg2ImgConfig bundles the knobs for an image-to-image
// renovation run.
type RenovationImg2ImgConfig struct {
	// TemplateStyle optionally describes the target visual style.
	TemplateStyle string

	AspectRatio string
	Language    string
	MaxWorkers  int
}

// NewRenovationImg2ImgTask creates an image-to-image renovation task.
func NewRenovationImg2ImgTask(
	projectID uuid.UUID,
	cfg RenovationImg2ImgConfig,
	taskStore TaskStore,
	pageStore PageStore,
	projectStore ProjectStore,
	imageGen generation.ImageGenerator,
	artifacts ArtifactSaver,
	resolver FileResolver,
	logger *slog.Logger,
) (*RenovationImg2ImgTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if pageStore == nil {
		return nil, ErrNilPageStore
	}
	if projectStore == nil {
		return nil, ErrNilStore
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
		cfg.MaxWorkers = 5
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}

	return &RenovationImg2ImgTask{
		id:           uuid.New(),
		projectID:    projectID,
		cfg:          cfg,
		taskStore:    taskStore,
		pageStore:    pageStore,
		projectStore: projectStore,
		imageGen:     imageGen,
		artifacts:    artifacts,
		resolver:     resolver,
		logger:       logger.With("task_type", TypeRenovationImg2Img, "project_id", projectID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *RenovationImg2ImgTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *RenovationImg2ImgTask) ProjectID() uuid.UUID { return t.projectID }

// Type returns the task type identifier.
func (t *RenovationImg2ImgTask) Type() string { return TypeRenovationImg2Img }

// Preflight verifies the project exists and every page has a source
// image to beautify.
func (t *RenovationImg2ImgTask) Preflight(ctx context.Context) error {
	if _, err := t.projectStore.GetProject(ctx, t.projectID); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	pages, err := t.pageStore.ListPages(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	for _, page := range pages {
		if page.CachedImagePath == "" && page.GeneratedImagePath == "" {
			return fmt.Errorf("%w: page %d has no source image", ErrNoImages, page.OrderIndex+1)
		}
	}
	return nil
}

// Execute runs the beautification pipeline. On any error the project is
// rolled back to DRAFT before the error is returned.
func (t *RenovationImg2ImgTask) Execute(ctx context.Context) error {
	err := t.run(ctx)
	if err != nil {
		if rollbackErr := t.projectStore.UpdateProjectStatus(ctx, t.projectID, domain.ProjectStatusDraft); rollbackErr != nil {
			t.logger.Error("failed to roll back project status", "error", rollbackErr)
		}
	}
	return err
}

func (t *RenovationImg2ImgTask) run(ctx context.Context) error {
	pages, err := t.pageStore.ListPages(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return ErrNoPages
	}

	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, len(pages)); err != nil {
		return err
	}
	if err := tracker.Update(ctx, func(p *Progress) {
		p.SetExtra("current_step", "beautifying")
	}); err != nil {
		return err
	}

	prompt := generation.BeautifyPrompt(t.cfg.TemplateStyle, t.cfg.Language)
	pageIDs := make([]uuid.UUID, len(pages))
	for i, page := range pages {
		pageIDs[i] = page.ID
	}

	failed := 0
	var firstErr error
	results := FanOut(ctx, pageIDs, t.cfg.MaxWorkers, func(ctx context.Context, pageID uuid.UUID, index int) (any, error) {
		return nil, t.beautifyPage(ctx, pageID, prompt)
	})
	for result := range results {
		if result.Err != nil {
			t.logger.Error("page beautification failed",
				"page_id", result.PageID, "error", result.Err)
			failed++
			if firstErr == nil {
				firstErr = result.Err
			}
		}
		if err := tracker.RecordResult(ctx, result.Err != nil); err != nil {
			t.logger.Error("failed to record progress", "error", err)
		}
	}

	if failed > 0 {
		return &BatchError{Failed: failed, Total: len(pages), First: firstErr}
	}

	if err := t.projectStore.UpdateProjectStatus(ctx, t.projectID, domain.ProjectStatusImagesGenerated); err != nil {
		return fmt.Errorf("failed to advance project status: %w", err)
	}
	return tracker.Update(ctx, func(p *Progress) {
		p.SetExtra("current_step", "done")
	})
}

// beautifyPage sends one page's current image through the model and
// records the result as a new version.
func (t *RenovationImg2ImgTask) beautifyPage(ctx context.Context, pageID uuid.UUID, prompt string) error {
	page, err := t.pageStore.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}

	imagePath := page.CachedImagePath
	if imagePath == "" {
		imagePath = page.GeneratedImagePath
	}
	if imagePath == "" {
		return fmt.Errorf("%w: page has no source image", ErrNoImages)
	}
	if t.resolver != nil {
		imagePath = t.resolver.AbsolutePath(imagePath)
	}

	img, err := t.imageGen.GenerateImage(ctx, generation.ImageRequest{
		Prompt:        prompt,
		RefImagePaths: []string{imagePath},
		AspectRatio:   t.cfg.AspectRatio,
	})
	if err != nil {
		return err
	}

	if _, _, err := t.artifacts.SaveWithVersion(ctx, img, t.projectID, pageID); err != nil {
		return fmt.Errorf("failed to save image version: %w", err)
	}
	return nil
}
