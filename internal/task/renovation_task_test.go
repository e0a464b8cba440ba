package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

// stubSplitter returns one unit path per page.
type stubSplitter struct {
	units []string
	err   error
}

func (s *stubSplitter) Split(context.Context, string, string) ([]string, error) {
	return s.units, s.err
}

// stubParser maps unit paths to markdown.
type stubParser struct {
	fn func(filePath string) (generation.ParseResult, error)
}

func (p *stubParser) Parse(_ context.Context, filePath string) (generation.ParseResult, error) {
	return p.fn(filePath)
}

// stubCaptioner returns a fixed caption.
type stubCaptioner struct {
	caption string
	err     error
}

func (c *stubCaptioner) CaptionLayout(context.Context, string) (string, error) {
	return c.caption, c.err
}

func unitPaths(n int) []string {
	units := make([]string, n)
	for i := range units {
		units[i] = fmt.Sprintf("/tmp/split/page_%d.pdf", i+1)
	}
	return units
}

func extractionGenerator() *stubTextGenerator {
	return &stubTextGenerator{fn: func(_ context.Context, prompt string, _ generation.TextOptions) (string, error) {
		return `{"title": "Extracted Title", "points": ["alpha", "beta"], "description": "extracted body"}`, nil
	}}
}

func TestRenovationTask(t *testing.T) {
	t.Parallel()

	t.Run("fills pages and aggregates project texts", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(3)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		parser := &stubParser{fn: func(string) (generation.ParseResult, error) {
			return generation.ParseResult{Markdown: "# page content"}, nil
		}}

		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
			SplitDir:      "/tmp/split",
		}, taskStore, pageStore, projectStore,
			&stubSplitter{units: unitPaths(3)}, parser, extractionGenerator(), nil, nil, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 3, progress.Total)
		assert.Equal(t, 3, progress.Completed)
		assert.Equal(t, 0, progress.Failed)
		step, _ := progress.GetExtra("current_step")
		assert.Equal(t, "done", step)

		for _, original := range pages {
			page := pageStore.page(original.ID)
			assert.Equal(t, domain.PageStatusDescriptionGenerated, page.Status)
			entry, err := page.GetOutlineContent()
			require.NoError(t, err)
			assert.Equal(t, "Extracted Title", entry.Title)
			assert.Equal(t, []string{"alpha", "beta"}, entry.Points)
			content, err := page.GetDescriptionContent()
			require.NoError(t, err)
			assert.Equal(t, "extracted body", content.Text)
		}

		updated, err := projectStore.GetProject(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusDescriptionsGenerated, updated.Status)
		assert.Contains(t, updated.OutlineText, "Page 1: Extracted Title")
		assert.Contains(t, updated.OutlineText, "- alpha")
		assert.Contains(t, updated.DescriptionText, "--- Page 3 ---")
	})

	t.Run("any page failure fails the run and rolls the project back", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(3)
		require.NoError(t, project.UpdateStatus(domain.ProjectStatusOutlineGenerated))
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)

		parseErr := errors.New("layout service unavailable")
		parser := &stubParser{fn: func(filePath string) (generation.ParseResult, error) {
			if strings.HasSuffix(filePath, "page_2.pdf") {
				return generation.ParseResult{}, parseErr
			}
			return generation.ParseResult{Markdown: "# page content"}, nil
		}}

		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
		}, taskStore, pageStore, projectStore,
			&stubSplitter{units: unitPaths(3)}, parser, extractionGenerator(), nil, nil, testLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.Error(t, err)

		var batchErr *BatchError
		require.ErrorAs(t, err, &batchErr)
		assert.Equal(t, 1, batchErr.Failed)
		assert.Equal(t, 3, batchErr.Total)
		assert.ErrorIs(t, batchErr, parseErr)

		// Progress still reflects every settled page.
		progress := taskStore.progress(task.ID())
		assert.Equal(t, 2, progress.Completed)
		assert.Equal(t, 1, progress.Failed)

		assert.Equal(t, domain.ProjectStatusDraft, projectStore.status(project.ID))
	})

	t.Run("blank source pages get a placeholder instead of failing", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(2)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		parser := &stubParser{fn: func(filePath string) (generation.ParseResult, error) {
			if strings.HasSuffix(filePath, "page_1.pdf") {
				return generation.ParseResult{Markdown: "   \n"}, nil
			}
			return generation.ParseResult{Markdown: "# content"}, nil
		}}

		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
		}, taskStore, pageStore, projectStore,
			&stubSplitter{units: unitPaths(2)}, parser, extractionGenerator(), nil, nil, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		entry, err := pageStore.page(pages[0].ID).GetOutlineContent()
		require.NoError(t, err)
		assert.Equal(t, "Page 1", entry.Title)
		assert.Empty(t, entry.Points)
	})

	t.Run("layout caption enriches the description", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(1)
		pages[0].GeneratedImagePath = "projects/p/pages/pg/v1.png"
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		parser := &stubParser{fn: func(string) (generation.ParseResult, error) {
			return generation.ParseResult{Markdown: "# content"}, nil
		}}

		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
			KeepLayout:    true,
		}, taskStore, pageStore, projectStore,
			&stubSplitter{units: unitPaths(1)}, parser, extractionGenerator(),
			&stubCaptioner{caption: "two columns, title on top"},
			staticResolver{root: "/data"}, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		content, err := pageStore.page(pages[0].ID).GetDescriptionContent()
		require.NoError(t, err)
		assert.Contains(t, content.Text, "extracted body")
		assert.Contains(t, content.Text, "two columns, title on top")
	})

	t.Run("aggregation reads the persisted page rows", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		project, pages := testProjectWithPages(2)
		pageStore := newMemPageStore(pages...)
		for i, page := range pages {
			entry := domain.OutlineEntry{Title: fmt.Sprintf("Stored Title %d", i+1), Points: []string{"point"}}
			description := domain.DescriptionContent{Text: fmt.Sprintf("stored body %d", i+1)}
			require.NoError(t, pageStore.UpdatePageContent(ctx, page.ID, entry, description,
				domain.PageStatusDescriptionGenerated))
		}

		parser := &stubParser{fn: func(string) (generation.ParseResult, error) {
			return generation.ParseResult{}, nil
		}}
		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
		}, newMemTaskStore(), pageStore, newMemProjectStore(project),
			&stubSplitter{units: unitPaths(2)}, parser, extractionGenerator(), nil, nil, testLogger())
		require.NoError(t, err)

		outline, description, err := task.aggregateTexts(ctx, []uuid.UUID{pages[0].ID, pages[1].ID})
		require.NoError(t, err)
		assert.Contains(t, outline, "Page 1: Stored Title 1")
		assert.Contains(t, outline, "Page 2: Stored Title 2")
		assert.Contains(t, description, "--- Page 1 ---\nstored body 1")
		assert.Contains(t, description, "--- Page 2 ---\nstored body 2")
	})

	t.Run("split failure fails before any page work", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(2)
		taskStore := newMemTaskStore()
		projectStore := newMemProjectStore(project)
		parser := &stubParser{fn: func(string) (generation.ParseResult, error) {
			t.Error("parser must not be called")
			return generation.ParseResult{}, nil
		}}

		task, err := NewRenovationTask(project.ID, RenovationConfig{
			SourceDocPath: "/tmp/deck.pdf",
		}, taskStore, newMemPageStore(pages...), projectStore,
			&stubSplitter{err: errors.New("corrupt document")}, parser, extractionGenerator(), nil, nil, testLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `stage "split"`)
		assert.Equal(t, domain.ProjectStatusDraft, projectStore.status(project.ID))
	})
}
