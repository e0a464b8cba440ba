package task

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

func pagesWithDescriptions(t *testing.T, n int) (*domain.Project, []*domain.Page) {
	t.Helper()
	project, pages := testProjectWithPages(n)
	for _, page := range pages {
		require.NoError(t, page.SetDescriptionContent(domain.DescriptionContent{
			Text:        "a slide about things",
			GeneratedAt: time.Now().UTC(),
		}))
		require.NoError(t, page.UpdateStatus(domain.PageStatusDescriptionGenerated))
	}
	return project, pages
}

func TestImageGenerationTask(t *testing.T) {
	t.Parallel()

	t.Run("all pages get a new version and the project completes", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 3)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		artifacts := newMemArtifacts()
		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return testImage(2048, 1152), nil
		}}

		task, err := NewImageGenerationTask(project.ID, ImageGenerationConfig{
			Outline:    testOutline(3),
			Resolution: "2K",
		}, taskStore, pageStore, projectStore, imageGen, artifacts, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 3, progress.Completed)
		assert.Equal(t, 0, progress.Failed)
		_, warned := progress.GetExtra("warning_message")
		assert.False(t, warned)

		for _, page := range pages {
			assert.Equal(t, 1, artifacts.versionOf(page.ID))
		}
		assert.Equal(t, domain.ProjectStatusCompleted, projectStore.status(project.ID))
	})

	t.Run("undersized output sets the resolution warning once", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 2)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return testImage(1024, 576), nil
		}}

		task, err := NewImageGenerationTask(project.ID, ImageGenerationConfig{
			Outline:    testOutline(2),
			Resolution: "2K",
		}, taskStore, pageStore, projectStore, imageGen, newMemArtifacts(), testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 2, progress.Completed)
		warning, ok := progress.GetExtra("warning_message")
		require.True(t, ok)
		assert.Equal(t, resolutionMismatchWarning, warning)
	})

	t.Run("failed save marks the page and blocks project completion", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 3)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		artifacts := newMemArtifacts()
		artifacts.failFor[pages[1].ID] = errors.New("disk full")
		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return testImage(2048, 1152), nil
		}}

		task, err := NewImageGenerationTask(project.ID, ImageGenerationConfig{
			Outline: testOutline(3),
		}, taskStore, pageStore, projectStore, imageGen, artifacts, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 2, progress.Completed)
		assert.Equal(t, 1, progress.Failed)
		assert.Equal(t, domain.PageStatusFailed, pageStore.page(pages[1].ID).Status)
		assert.NotEqual(t, domain.ProjectStatusCompleted, projectStore.status(project.ID))
	})

	t.Run("subset run only touches the requested pages", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 4)
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(pages...)
		projectStore := newMemProjectStore(project)
		artifacts := newMemArtifacts()
		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return testImage(2048, 1152), nil
		}}

		task, err := NewImageGenerationTask(project.ID, ImageGenerationConfig{
			Outline: testOutline(4),
			PageIDs: []uuid.UUID{pages[1].ID, pages[3].ID},
		}, taskStore, pageStore, projectStore, imageGen, artifacts, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 2, progress.Total)
		assert.Equal(t, 2, progress.Completed)
		assert.Equal(t, 1, artifacts.versionOf(pages[1].ID))
		assert.Equal(t, 1, artifacts.versionOf(pages[3].ID))
		assert.Equal(t, 0, artifacts.versionOf(pages[0].ID))
		assert.Equal(t, 0, artifacts.versionOf(pages[2].ID))
	})

	t.Run("preflight rejects a page outside the outline", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 5)
		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return nil, nil
		}}

		// Outline covers only 3 entries but the project has 5 pages.
		task, err := NewImageGenerationTask(project.ID, ImageGenerationConfig{
			Outline: testOutline(3),
		}, newMemTaskStore(), newMemPageStore(pages...), newMemProjectStore(project), imageGen, newMemArtifacts(), testLogger())
		require.NoError(t, err)

		assert.ErrorIs(t, task.Preflight(context.Background()), ErrPageCountMismatch)
	})
}
