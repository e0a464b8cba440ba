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

// MaterialFileStore persists a material image to the artifact layout and
// returns its relative path, public URL, and filename.
type MaterialFileStore interface {
	SaveMaterialImage(img image.Image, projectID *uuid.UUID) (relativePath, url, filename string, err error)
}

// MaterialImageTask generates a standalone material image not tied to a
// page. projectID may be nil for a global material; the task record
// still needs an owning project, so global runs use the nil UUID there.
type MaterialImageTask struct {
	id        uuid.UUID
	projectID *uuid.UUID
	cfg       MaterialImageConfig

	taskStore     TaskStore
	materialStore MaterialStore
	files         MaterialFileStore
	imageGen      generation.ImageGenerator
	logger        *slog.Logger
}

// MaterialImageConfig bundles the knobs for a material generation run.
type MaterialImageConfig struct {
	Prompt              string
	RefImagePath        string
	AdditionalRefImages []string
	AspectRatio         string
	Resolution          string
}

// NewMaterialImageTask creates a material image generation task.
func NewMaterialImageTask(
	projectID *uuid.UUID,
	cfg MaterialImageConfig,
	taskStore TaskStore,
	materialStore MaterialStore,
	files MaterialFileStore,
	imageGen generation.ImageGenerator,
	logger *slog.Logger,
) (*MaterialImageTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if materialStore == nil || files == nil {
		return nil, ErrNilStore
	}
	if imageGen == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.Prompt == "" {
		return nil, domain.ErrEmptyContent
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "2K"
	}

	return &MaterialImageTask{
		id:            uuid.New(),
		projectID:     projectID,
		cfg:           cfg,
		taskStore:     taskStore,
		materialStore: materialStore,
		files:         files,
		imageGen:      imageGen,
		logger:        logger.With("task_type", TypeMaterialImage),
	}, nil
}

// ID returns the task's unique identifier.
func (t *MaterialImageTask) ID() uuid.UUID { return t.id }

// ProjectID returns the owning project, or the nil UUID for a global
// material.
func (t *MaterialImageTask) ProjectID() uuid.UUID {
	if t.projectID == nil {
		return uuid.Nil
	}
	return *t.projectID
}

// Type returns the task type identifier.
func (t *MaterialImageTask) Type() string { return TypeMaterialImage }

// Execute generates the image, persists the artifact, and records the
// material row. The material's ID and URL are surfaced through the
// task's progress record for polling clients.
func (t *MaterialImageTask) Execute(ctx context.Context) error {
	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, 1); err != nil {
		return err
	}

	req := generation.ImageRequest{
		Prompt:      t.cfg.Prompt,
		AspectRatio: t.cfg.AspectRatio,
		Resolution:  t.cfg.Resolution,
	}
	if t.cfg.RefImagePath != "" {
		req.RefImagePaths = append(req.RefImagePaths, t.cfg.RefImagePath)
	}
	req.RefImagePaths = append(req.RefImagePaths, t.cfg.AdditionalRefImages...)

	img, err := t.imageGen.GenerateImage(ctx, req)
	if err != nil {
		if trackErr := tracker.RecordResult(ctx, true); trackErr != nil {
			t.logger.Error("failed to record progress", "error", trackErr)
		}
		return err
	}

	relativePath, url, filename, err := t.files.SaveMaterialImage(img, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to save material image: %w", err)
	}

	material, err := domain.NewMaterial(t.projectID, filename, relativePath, url)
	if err != nil {
		return err
	}
	if err := t.materialStore.CreateMaterial(ctx, material); err != nil {
		return fmt.Errorf("failed to save material record: %w", err)
	}

	return tracker.Update(ctx, func(p *Progress) {
		p.Completed = 1
		p.SetExtra("material_id", material.ID.String())
		p.SetExtra("image_url", url)
	})
}
