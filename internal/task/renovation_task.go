package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// RenovationTask rebuilds a project's outline and descriptions from an
// uploaded source document. The run is staged: split the document into
// per-page units, then per page parse the unit into markdown, extract
// structured content with the text model, optionally enrich with a
// layout caption, and persist the result. A final aggregation stage
// writes the project-level texts.
//
// Unlike the generation pipelines this task is all-or-nothing: any page
// failure fails the whole task and the project status is rolled back to
// DRAFT so the upload can be retried.
type RenovationTask struct {
	id        uuid.UUID
	projectID uuid.UUID
	cfg       RenovationConfig

	taskStore    TaskStore
	pageStore    PageStore
	projectStore ProjectStore
	splitter     generation.DocumentSplitter
	parser       generation.DocumentParser
	textGen      generation.TextGenerator
	captioner    generation.LayoutCaptioner
	resolver     FileResolver
	logger       *slog.Logger
}

// RenovationConfig bundles the knobs for a renovation run.
type RenovationConfig struct {
	// SourceDocPath is the uploaded document to renovate.
	SourceDocPath string

	// SplitDir is where per-page units are written.
	SplitDir string

	// KeepLayout enriches each page's description with a structural
	// caption of its existing image, when one is available.
	KeepLayout bool

	Language   string
	MaxWorkers int
}

// NewRenovationTask creates a renovation task. captioner and resolver
// may be nil when KeepLayout is off.
func NewRenovationTask(
	projectID uuid.UUID,
	cfg RenovationConfig,
	taskStore TaskStore,
	pageStore PageStore,
	projectStore ProjectStore,
	splitter generation.DocumentSplitter,
	parser generation.DocumentParser,
	textGen generation.TextGenerator,
	captioner generation.LayoutCaptioner,
	resolver FileResolver,
	logger *slog.Logger,
) (*RenovationTask, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if pageStore == nil {
		return nil, ErrNilPageStore
	}
	if projectStore == nil {
		return nil, ErrNilStore
	}
	if splitter == nil || parser == nil || textGen == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if projectID == uuid.Nil {
		return nil, domain.ErrEmptyProjectID
	}
	if cfg.SourceDocPath == "" {
		return nil, fmt.Errorf("%w: source document path", domain.ErrEmptyContent)
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}

	return &RenovationTask{
		id:           uuid.New(),
		projectID:    projectID,
		cfg:          cfg,
		taskStore:    taskStore,
		pageStore:    pageStore,
		projectStore: projectStore,
		splitter:     splitter,
		parser:       parser,
		textGen:      textGen,
		captioner:    captioner,
		resolver:     resolver,
		logger:       logger.With("task_type", TypeRenovation, "project_id", projectID),
	}, nil
}

// ID returns the task's unique identifier.
func (t *RenovationTask) ID() uuid.UUID { return t.id }

// ProjectID returns the project this task operates on.
func (t *RenovationTask) ProjectID() uuid.UUID { return t.projectID }

// Type returns the task type identifier.
func (t *RenovationTask) Type() string { return TypeRenovation }

// Preflight verifies the project exists and has pages to fill.
func (t *RenovationTask) Preflight(ctx context.Context) error {
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
	return nil
}

// Execute runs the staged renovation pipeline. On any error the project
// is rolled back to DRAFT before the error is returned.
func (t *RenovationTask) Execute(ctx context.Context) error {
	err := t.run(ctx)
	if err != nil {
		if rollbackErr := t.projectStore.UpdateProjectStatus(ctx, t.projectID, domain.ProjectStatusDraft); rollbackErr != nil {
			t.logger.Error("failed to roll back project status", "error", rollbackErr)
		}
	}
	return err
}

func (t *RenovationTask) run(ctx context.Context) error {
	var pages []*domain.Page
	var units []string
	var pageIDs []uuid.UUID
	tracker := NewTracker(t.taskStore, t.id)

	return runStages(ctx, t.logger, []Stage{
		{
			Name: "split",
			Run: func(ctx context.Context) error {
				var err error
				units, err = t.splitter.Split(ctx, t.cfg.SourceDocPath, t.cfg.SplitDir)
				if err != nil {
					return fmt.Errorf("failed to split source document: %w", err)
				}

				pages, err = t.pageStore.ListPages(ctx, t.projectID)
				if err != nil {
					return fmt.Errorf("failed to list pages: %w", err)
				}
				if len(pages) != len(units) {
					t.logger.Warn("page count differs from split unit count, using the smaller",
						"pages", len(pages), "units", len(units))
				}
				if min(len(pages), len(units)) == 0 {
					return ErrNoPages
				}
				return nil
			},
		},
		{
			Name: "process_pages",
			Run: func(ctx context.Context) error {
				count := min(len(pages), len(units))
				pages = pages[:count]
				units = units[:count]

				if err := tracker.Init(ctx, count); err != nil {
					return err
				}
				if err := tracker.Update(ctx, func(p *Progress) {
					p.SetExtra("current_step", "parsing")
				}); err != nil {
					return err
				}

				unitByPage := make(map[uuid.UUID]string, count)
				pageIDs = make([]uuid.UUID, count)
				for i, page := range pages {
					pageIDs[i] = page.ID
					unitByPage[page.ID] = units[i]
				}

				failed := 0
				var firstErr error
				results := FanOut(ctx, pageIDs, t.cfg.MaxWorkers, func(ctx context.Context, pageID uuid.UUID, index int) (any, error) {
					return nil, t.processPage(ctx, pageID, index, unitByPage[pageID])
				})
				for result := range results {
					if result.Err != nil {
						t.logger.Error("page renovation failed",
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
					return &BatchError{Failed: failed, Total: count, First: firstErr}
				}
				return nil
			},
		},
		{
			Name: "aggregate",
			Run: func(ctx context.Context) error {
				outlineText, descriptionText, err := t.aggregateTexts(ctx, pageIDs)
				if err != nil {
					return err
				}
				if err := t.projectStore.UpdateProjectTexts(ctx, t.projectID,
					outlineText, descriptionText, domain.ProjectStatusDescriptionsGenerated); err != nil {
					return fmt.Errorf("failed to update project texts: %w", err)
				}
				return tracker.Update(ctx, func(p *Progress) {
					p.SetExtra("current_step", "done")
				})
			},
		},
	})
}

// processPage runs the per-page pipeline: parse the split unit into
// markdown, extract structured content, optionally append a layout
// caption, and persist outline and description in one write.
func (t *RenovationTask) processPage(ctx context.Context, pageID uuid.UUID, index int, unitPath string) error {
	parsed, err := t.parser.Parse(ctx, unitPath)
	if err != nil {
		return fmt.Errorf("failed to parse page unit: %w", err)
	}

	var content generation.PageContent
	if strings.TrimSpace(parsed.Markdown) == "" {
		// Blank source pages keep a placeholder rather than failing the
		// whole run.
		content = generation.PageContent{Title: fmt.Sprintf("Page %d", index)}
	} else {
		content, err = generation.ExtractPageContent(ctx, t.textGen, parsed.Markdown, t.cfg.Language)
		if err != nil {
			return fmt.Errorf("failed to extract page content: %w", err)
		}
	}

	if t.cfg.KeepLayout && t.captioner != nil {
		if caption := t.captionLayout(ctx, pageID); caption != "" {
			content.Description = strings.TrimSpace(content.Description + "\n\n" + caption)
		}
	}

	entry := domain.OutlineEntry{Title: content.Title, Points: content.Points}
	description := domain.DescriptionContent{
		Text:        content.Description,
		GeneratedAt: time.Now().UTC(),
	}
	if err := t.pageStore.UpdatePageContent(ctx, pageID, entry, description, domain.PageStatusDescriptionGenerated); err != nil {
		return fmt.Errorf("failed to store page content: %w", err)
	}
	return nil
}

// captionLayout describes the page's existing image. A missing image or
// caption failure degrades to no enrichment rather than a page failure.
func (t *RenovationTask) captionLayout(ctx context.Context, pageID uuid.UUID) string {
	page, err := t.pageStore.GetPage(ctx, pageID)
	if err != nil {
		t.logger.Warn("layout caption skipped", "page_id", pageID, "error", err)
		return ""
	}

	imagePath := page.CachedImagePath
	if imagePath == "" {
		imagePath = page.GeneratedImagePath
	}
	if imagePath == "" {
		return ""
	}
	if t.resolver != nil {
		imagePath = t.resolver.AbsolutePath(imagePath)
	}

	caption, err := t.captioner.CaptionLayout(ctx, imagePath)
	if err != nil {
		t.logger.Warn("layout caption failed", "page_id", pageID, "error", err)
		return ""
	}
	return caption
}

// aggregateTexts concatenates the renovated pages into the project's
// outline and description texts, in page order. It reads the rows
// processPage persisted rather than any in-process state, so the stage
// works against whatever the store holds when it runs.
func (t *RenovationTask) aggregateTexts(ctx context.Context, pageIDs []uuid.UUID) (outlineText, descriptionText string, err error) {
	pages, err := t.pageStore.ListPagesByIDs(ctx, t.projectID, pageIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to reload renovated pages: %w", err)
	}

	var outlines, descriptions []string
	for i, page := range pages {
		entry, err := page.GetOutlineContent()
		if err != nil {
			return "", "", fmt.Errorf("failed to read outline of page %d: %w", i+1, err)
		}
		description, err := page.GetDescriptionContent()
		if err != nil {
			return "", "", fmt.Errorf("failed to read description of page %d: %w", i+1, err)
		}

		header := fmt.Sprintf("Page %d: %s", i+1, entry.Title)
		if len(entry.Points) > 0 {
			var b strings.Builder
			b.WriteString(header)
			for _, point := range entry.Points {
				b.WriteString("\n- ")
				b.WriteString(point)
			}
			outlines = append(outlines, b.String())
		} else {
			outlines = append(outlines, header)
		}
		descriptions = append(descriptions, fmt.Sprintf("--- Page %d ---\n%s", i+1, description.Text))
	}
	return strings.Join(outlines, "\n\n"), strings.Join(descriptions, "\n\n"), nil
}
