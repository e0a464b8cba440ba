package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/api"
	"github.com/guojun21/banana-slides/internal/config"
	"github.com/guojun21/banana-slides/internal/export"
	"github.com/guojun21/banana-slides/internal/platform/gemini"
	"github.com/guojun21/banana-slides/internal/platform/pdf"
	"github.com/guojun21/banana-slides/internal/platform/postgres"
	"github.com/guojun21/banana-slides/internal/service"
	"github.com/guojun21/banana-slides/internal/store"
	"github.com/guojun21/banana-slides/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore     task.TaskStore
	pageStore     store.PageStore
	projectStore  store.ProjectStore
	versionStore  store.VersionStore
	materialStore store.MaterialStore

	// Services
	fileService     *service.FileService
	artifactService *service.ArtifactService
	exportService   *export.Service
	generator       *gemini.Generator
	splitter        *pdf.Splitter

	// Task handling
	runner      *task.Runner
	taskFactory *TaskFactory
}

// newApplication creates a new application instance with all
// dependencies initialized. It accepts core dependencies like
// configuration, logger, and database connection that must be
// established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.pageStore = postgres.NewPostgresPageStore(db, logger)
	app.projectStore = postgres.NewPostgresProjectStore(db, logger)
	app.versionStore = postgres.NewPostgresVersionStore(db, logger)
	app.materialStore = postgres.NewPostgresMaterialStore(db, logger)

	// Initialize the artifact file layout
	var err error
	app.fileService, err = service.NewFileService(cfg.Storage.DataRoot, cfg.Storage.FileBaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file service: %w", err)
	}

	// Initialize the versioned artifact service
	versionRepoAdapter := service.NewVersionRepositoryAdapter(app.versionStore)
	pageRepoAdapter := service.NewPageRepositoryAdapter(app.pageStore, db)
	app.artifactService, err = service.NewArtifactService(
		versionRepoAdapter,
		pageRepoAdapter,
		app.fileService,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact service: %w", err)
	}

	// Create the LLM generator service
	app.generator, err = gemini.NewGenerator(
		ctx,
		logger.With("component", "llm_generator"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized successfully")

	// Initialize the document splitter for renovation runs
	app.splitter, err = pdf.NewSplitter(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document splitter: %w", err)
	}

	// Initialize the export service with the PPTX builder
	app.exportService, err = export.NewService(
		app.generator,
		func() export.DocumentBuilder { return export.NewPPTXBuilder() },
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	// Initialize and start the task runner
	app.runner = task.NewRunner(app.taskStore, task.RunnerConfig{
		WorkerCount: cfg.Tasks.WorkerCount,
		QueueSize:   cfg.Tasks.QueueSize,
	}, logger)
	app.runner.Start()

	app.taskFactory = &TaskFactory{app: app}

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters
// problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupRouter builds the HTTP surface from the application dependencies.
func (app *application) setupRouter() http.Handler {
	taskHandler := api.NewTaskHandler(app.taskStore, app.logger)
	return api.NewRouter(api.RouterConfig{
		TaskHandler: taskHandler,
		FilesDir:    app.config.Storage.DataRoot,
	})
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}

	app.logger.Info("application shutdown completed")
}

// TaskFactory builds executable tasks from the application's shared
// dependencies. Callers construct a task here and hand it to
// Runner.Submit; the factory is the single place that knows which
// stores and services each pipeline needs.
type TaskFactory struct {
	app *application
}

// DescriptionGeneration builds a per-page description generation run.
func (f *TaskFactory) DescriptionGeneration(projectID uuid.UUID, cfg task.DescriptionGenerationConfig) (task.Task, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = f.app.config.Tasks.MaxPageWorkers
	}
	return task.NewDescriptionGenerationTask(projectID, cfg,
		f.app.taskStore, f.app.pageStore, f.app.projectStore,
		f.app.generator, f.app.logger)
}

// ImageGeneration builds a full-deck (or subset) image generation run.
func (f *TaskFactory) ImageGeneration(projectID uuid.UUID, cfg task.ImageGenerationConfig) (task.Task, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = f.app.config.Tasks.MaxPageWorkers
	}
	return task.NewImageGenerationTask(projectID, cfg,
		f.app.taskStore, f.app.pageStore, f.app.projectStore,
		f.app.generator, f.app.artifactService, f.app.logger)
}

// PageImage builds a single-page regenerate or edit run.
func (f *TaskFactory) PageImage(pageID uuid.UUID, cfg task.PageImageConfig) (task.Task, error) {
	return task.NewPageImageTask(pageID, cfg,
		f.app.taskStore, f.app.pageStore,
		f.app.generator, f.app.artifactService, f.app.fileService, f.app.logger)
}

// MaterialImage builds a standalone material generation run. projectID
// is nil for a global material.
func (f *TaskFactory) MaterialImage(projectID *uuid.UUID, cfg task.MaterialImageConfig) (task.Task, error) {
	return task.NewMaterialImageTask(projectID, cfg,
		f.app.taskStore, f.app.materialStore, f.app.fileService,
		f.app.generator, f.app.logger)
}

// Renovation builds a document renovation run.
func (f *TaskFactory) Renovation(projectID uuid.UUID, cfg task.RenovationConfig) (task.Task, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = f.app.config.Tasks.MaxPageWorkers
	}
	return task.NewRenovationTask(projectID, cfg,
		f.app.taskStore, f.app.pageStore, f.app.projectStore,
		f.app.splitter, f.app.generator, f.app.generator,
		f.app.generator, f.app.fileService, f.app.logger)
}

// RenovationImg2Img builds an image-to-image renovation run.
func (f *TaskFactory) RenovationImg2Img(projectID uuid.UUID, cfg task.RenovationImg2ImgConfig) (task.Task, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = f.app.config.Tasks.MaxPageWorkers
	}
	return task.NewRenovationImg2ImgTask(projectID, cfg,
		f.app.taskStore, f.app.pageStore, f.app.projectStore,
		f.app.generator, f.app.artifactService, f.app.fileService, f.app.logger)
}

// Export builds an editable-deck export run.
func (f *TaskFactory) Export(projectID uuid.UUID, cfg task.ExportConfig) (task.Task, error) {
	return task.NewExportTask(projectID, cfg,
		f.app.taskStore, f.app.pageStore, f.app.projectStore,
		f.app.exportService, f.app.fileService, f.app.fileService, f.app.logger)
}
