package task

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

func TestRenovationImg2ImgTask(t *testing.T) {
	t.Parallel()

	fixture := func(t *testing.T, n int) (*domain.Project, []*domain.Page, *memTaskStore, *memPageStore, *memProjectStore) {
		t.Helper()
		project, pages := testProjectWithPages(n)
		for _, page := range pages {
			page.GeneratedImagePath = "projects/x/pages/" + page.ID.String() + "/v1.png"
		}
		return project, pages, newMemTaskStore(), newMemPageStore(pages...), newMemProjectStore(project)
	}

	t.Run("beautifies every page and advances the project", func(t *testing.T) {
		t.Parallel()

		project, pages, taskStore, pageStore, projectStore := fixture(t, 3)
		artifacts := newMemArtifacts()

		var mu sync.Mutex
		var seenRefs []string
		imageGen := &stubImageGenerator{fn: func(_ context.Context, req generation.ImageRequest) (image.Image, error) {
			mu.Lock()
			seenRefs = append(seenRefs, req.RefImagePaths...)
			mu.Unlock()
			return testImage(2048, 1152), nil
		}}

		task, err := NewRenovationImg2ImgTask(project.ID, RenovationImg2ImgConfig{
			TemplateStyle: "flat minimal",
		}, taskStore, pageStore, projectStore, imageGen, artifacts,
			staticResolver{root: "/data"}, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 3, progress.Completed)
		assert.Equal(t, 0, progress.Failed)
		step, _ := progress.GetExtra("current_step")
		assert.Equal(t, "done", step)

		for _, page := range pages {
			assert.Equal(t, 1, artifacts.versionOf(page.ID))
		}
		for _, ref := range seenRefs {
			assert.True(t, strings.HasPrefix(ref, "/data/"))
		}
		assert.Equal(t, domain.ProjectStatusImagesGenerated, projectStore.status(project.ID))
	})

	t.Run("one failure fails the run and rolls the project back", func(t *testing.T) {
		t.Parallel()

		project, pages, taskStore, pageStore, projectStore := fixture(t, 3)
		require.NoError(t, projectStore.UpdateProjectStatus(context.Background(), project.ID, domain.ProjectStatusOutlineGenerated))

		failing := pages[2].ID
		genErr := errors.New("content blocked")
		imageGen := &stubImageGenerator{fn: func(_ context.Context, req generation.ImageRequest) (image.Image, error) {
			if strings.Contains(req.RefImagePaths[0], failing.String()) {
				return nil, genErr
			}
			return testImage(2048, 1152), nil
		}}

		task, err := NewRenovationImg2ImgTask(project.ID, RenovationImg2ImgConfig{},
			taskStore, pageStore, projectStore, imageGen, newMemArtifacts(), nil, testLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.Error(t, err)

		var batchErr *BatchError
		require.ErrorAs(t, err, &batchErr)
		assert.Equal(t, 1, batchErr.Failed)
		assert.ErrorIs(t, batchErr, genErr)

		assert.Equal(t, domain.ProjectStatusDraft, projectStore.status(project.ID))
	})

	t.Run("preflight rejects pages without source images", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(2)
		pages[0].GeneratedImagePath = "projects/x/pages/y/v1.png"
		// pages[1] has no image at all.

		imageGen := &stubImageGenerator{fn: func(context.Context, generation.ImageRequest) (image.Image, error) {
			return nil, nil
		}}
		task, err := NewRenovationImg2ImgTask(project.ID, RenovationImg2ImgConfig{},
			newMemTaskStore(), newMemPageStore(pages...), newMemProjectStore(project),
			imageGen, newMemArtifacts(), nil, testLogger())
		require.NoError(t, err)

		assert.ErrorIs(t, task.Preflight(context.Background()), ErrNoImages)
	})
}
