package task

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
)

func TestPageImageTask(t *testing.T) {
	t.Parallel()

	t.Run("regenerate produces a new version from the description", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 1)
		page := pages[0]
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(page)
		artifacts := newMemArtifacts()

		var gotReq generation.ImageRequest
		imageGen := &stubImageGenerator{fn: func(_ context.Context, req generation.ImageRequest) (image.Image, error) {
			gotReq = req
			return testImage(2048, 1152), nil
		}}

		task, err := NewPageImageTask(page.ID, PageImageConfig{
			ProjectID: project.ID,
		}, taskStore, pageStore, imageGen, artifacts, nil, testLogger())
		require.NoError(t, err)
		assert.Equal(t, TypePageImage, task.Type())
		assert.Equal(t, project.ID, task.ProjectID())

		require.NoError(t, task.Execute(context.Background()))

		assert.Equal(t, 1, artifacts.versionOf(page.ID))
		assert.Contains(t, gotReq.Prompt, "a slide about things")
		assert.Empty(t, gotReq.RefImagePaths)

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 1, progress.Completed)
	})

	t.Run("edit sends the current image and the instruction", func(t *testing.T) {
		t.Parallel()

		project, pages := pagesWithDescriptions(t, 1)
		page := pages[0]
		page.GeneratedImagePath = "projects/p/pages/x/v1.png"
		pageStore := newMemPageStore(page)
		artifacts := newMemArtifacts()

		var gotReq generation.ImageRequest
		imageGen := &stubImageGenerator{fn: func(_ context.Context, req generation.ImageRequest) (image.Image, error) {
			gotReq = req
			return testImage(2048, 1152), nil
		}}

		task, err := NewPageImageTask(page.ID, PageImageConfig{
			ProjectID:           project.ID,
			EditInstruction:     "make the title larger",
			AdditionalRefImages: []string{"/refs/logo.png"},
		}, newMemTaskStore(), pageStore, imageGen, artifacts, staticResolver{root: "/data"}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, TypePageImageEdit, task.Type())

		require.NoError(t, task.Execute(context.Background()))

		assert.Contains(t, gotReq.Prompt, "make the title larger")
		require.Len(t, gotReq.RefImagePaths, 2)
		assert.True(t, strings.HasPrefix(gotReq.RefImagePaths[0], "/data/"),
			"current image resolves against the data root, got %s", gotReq.RefImagePaths[0])
		assert.Equal(t, "/refs/logo.png", gotReq.RefImagePaths[1])
		assert.Equal(t, 1, artifacts.versionOf(page.ID))
	})

	t.Run("regenerate without a description fails and marks the page", func(t *testing.T) {
		t.Parallel()

		project, pages := testProjectWithPages(1)
		page := pages[0]
		taskStore := newMemTaskStore()
		pageStore := newMemPageStore(page)

		task, err := NewPageImageTask(page.ID, PageImageConfig{ProjectID: project.ID},
			taskStore, pageStore, &stubImageGenerator{}, newMemArtifacts(), nil, testLogger())
		require.NoError(t, err)

		require.Error(t, task.Execute(context.Background()))
		assert.Equal(t, domain.PageStatusFailed, pageStore.page(page.ID).Status)

		progress := taskStore.progress(task.ID())
		assert.Equal(t, 1, progress.Failed)
	})

	t.Run("constructor rejects the nil page ID", func(t *testing.T) {
		t.Parallel()

		_, err := NewPageImageTask(uuid.Nil, PageImageConfig{},
			newMemTaskStore(), newMemPageStore(), &stubImageGenerator{},
			newMemArtifacts(), nil, testLogger())
		assert.ErrorIs(t, err, domain.ErrEmptyPageID)
	})
}
