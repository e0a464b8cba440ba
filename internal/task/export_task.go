package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/export"
)

// DeckExporter assembles slide images into an editable document.
// Implemented by export.Service.
type DeckExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// ExportFileStore places export output files. Implemented by
// service.FileService.
type ExportFileStore interface {
	// EnsureExportPath returns the absolute output path for the given
	// filename, creating the exports directory and renaming on
	// collision. The final filename is returned alongside.
	EnsureExportPath(projectID uuid.UUID, filename string) (absPath, finalFilename string, err error)

	// ExportURL returns the client-facing download URL for an export.
	ExportURL(projectID uuid.UUID, filename string) string
}

// ExportTask builds an editable presentation from a project's generated
// page images. Whether a page whose analysis fails aborts the run or
// degrades to a flat image is the project's export_allow_partial
// setting, read at execution time.
//
// Export progress is percent-based rather than page-count-based, with a
// bounded message log and a current_step label for polling clients.
type ExportTask struct {
	id        uuid.UUID
	projectID uuid.UUID
	cfg       ExportConfig

	taskStore    TaskStore
	pageStore    PageStore
	projectStore ProjectStore
	exporter     DeckExporter
	files        ExportFileStore
	resolver     FileResolver
	logger       *slog.Logger
}

// ExportConfig bundles the knobs for an export run.
type ExportConfig struct {
	Filename string

	// PageIDs optionally restricts the export to a subset of pages.
	PageIDs []uuid.UUID

	MaxWorkers int
}

// NewExportTask creates an export task.
func NewExportTask(
	projectID uuid.UUID,
	cfg ExportConfig,
	taskStore TaskStore,
	pageStore PageStore,
	projectStore ProjectStore,
	exporter DeckExporter,
	files ExportFileStore,
	resolver FileResolver,
	logger *slog.Logger,
) (*ExportTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if pageStore == nil {
		return nil, ErrNilPageStore
	}
	if projectStore == nil || files == nil {
		return nil, ErrNilStore
	}
	if exporter == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if projectID == uuid.Nil {
		return nil, domain.ErrEmptyProjectID
	}
	if cfg.Filename == "" {
		cfg.Filename = "presentation.pptx"
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}

	return &ExportTask{
		id:           uuid.New(),
		projectID:    projectID,
		cfg:          cfg,
		taskStore:    taskStore,
		pageStore:    pageStore,
		projectStore: projectStore,
		exporter:     exporter,
		files:        files,
		resolver:     resolver,
		logger:       logger.With("task_type", TypeExport, "project_id", projectID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *ExportTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *ExportTask) ProjectID() uuid.UUID { return t.projectID }

// Type returns the task type identifier.
func (t *ExportTask) Type() string { return TypeExport }

// Preflight verifies the project exists and at least one page has a
// generated image to export.
func (t *ExportTask) Preflight(ctx context.Context) error {
	if _, err := t.projectStore.GetProject(ctx, t.projectID); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	pages, err := t.pageStore.ListPagesByIDs(ctx, t.projectID, t.cfg.PageIDs)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	for _, page := range pages {
		if page.GeneratedImagePath != "" {
			return nil
		}
	}
	return ErrNoImages
}

// Execute runs the export pipeline.
func (t *ExportTask) Execute(ctx context.Context) error {
	project, err := t.projectStore.GetProject(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	pages, err := t.pageStore.ListPagesByIDs(ctx, t.projectID, t.cfg.PageIDs)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	imagePaths := make([]string, 0, len(pages))
	for _, page := range pages {
		if page.GeneratedImagePath == "" {
			continue
		}
		path := page.GeneratedImagePath
		if t.resolver != nil {
			path = t.resolver.AbsolutePath(path)
		}
		imagePaths = append(imagePaths, path)
	}
	if len(imagePaths) == 0 {
		return ErrNoImages
	}

	tracker := NewTracker(t.taskStore, t.id)
	if err := tracker.Init(ctx, 100); err != nil {
		return err
	}
	if err := tracker.Update(ctx, func(p *Progress) {
		p.SetExtra("percent", 0)
		p.SetExtra("current_step", "preparing")
		p.AppendMessage("export started")
	}); err != nil {
		return err
	}

	outputPath, filename, err := t.files.EnsureExportPath(t.projectID, t.cfg.Filename)
	if err != nil {
		return fmt.Errorf("failed to prepare export path: %w", err)
	}

	result, err := t.exporter.Export(ctx, export.Request{
		ImagePaths:   imagePaths,
		OutputPath:   outputPath,
		AllowPartial: project.ExportAllowPartial,
		MaxWorkers:   t.cfg.MaxWorkers,
		Progress:     t.progressFn(ctx, tracker),
	})
	if err != nil {
		t.recordExportFailure(ctx, tracker, err)
		return err
	}

	return tracker.Update(ctx, func(p *Progress) {
		p.Completed = 100
		p.SetExtra("percent", 100)
		p.SetExtra("current_step", "done")
		p.SetExtra("download_url", t.files.ExportURL(t.projectID, filename))
		p.SetExtra("filename", filename)
		p.AppendMessage("export complete")
		if result.Warnings != nil && result.Warnings.HasWarnings() {
			summary := result.Warnings.Summary()
			for _, line := range summary {
				p.AddWarning(line)
			}
			p.SetExtra("warning_details", result.Warnings.Details())
		}
	})
}

// progressFn adapts the exporter's callback to progress record updates.
// Callback failures are logged, never propagated into the export.
func (t *ExportTask) progressFn(ctx context.Context, tracker *Tracker) export.ProgressFn {
	return func(step, message string, percent int) {
		if err := tracker.Update(ctx, func(p *Progress) {
			p.Completed = percent
			p.SetExtra("percent", percent)
			p.SetExtra("current_step", message)
			p.AppendMessage(fmt.Sprintf("[%s] %s", step, message))
		}); err != nil {
			t.logger.Warn("failed to record export progress", "error", err)
		}
	}
}

// recordExportFailure surfaces a structured export error's kind and
// guidance through the progress record before the task fails.
func (t *ExportTask) recordExportFailure(ctx context.Context, tracker *Tracker, exportErr error) {
	var structured *export.Error
	if !errors.As(exportErr, &structured) {
		return
	}
	if err := tracker.Update(ctx, func(p *Progress) {
		p.Completed = 0
		p.Failed = 1
		p.SetExtra("percent", 0)
		p.SetExtra("current_step", "export failed")
		p.SetExtra("error_type", structured.Kind)
		if structured.HelpText != "" {
			p.SetExtra("help_text", structured.HelpText)
		}
		if len(structured.Details) > 0 {
			p.SetExtra("error_details", structured.Details)
		}
	}); err != nil {
		t.logger.Warn("failed to record export failure", "error", err)
	}
}
