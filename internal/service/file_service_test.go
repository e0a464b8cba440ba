package service

import (
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFileService(t *testing.T) *FileService {
	t.Helper()
	svc, err := NewFileService(t.TempDir(), "/files", testLogger())
	require.NoError(t, err)
	return svc
}

func TestFileServicePageImages(t *testing.T) {
	t.Parallel()

	svc := newTestFileService(t)
	projectID := uuid.New()
	pageID := uuid.New()
	img := image.NewRGBA(image.Rect(0, 0, 2048, 1152))

	imagePath, cachedPath, err := svc.SavePageImage(img, projectID, pageID, 3)
	require.NoError(t, err)

	assert.Equal(t, "projects/"+projectID.String()+"/pages/"+pageID.String()+"/v3.png", imagePath)
	assert.Equal(t, "projects/"+projectID.String()+"/pages/"+pageID.String()+"/cache/v3.jpg", cachedPath)

	// Both files land on disk under the data root.
	_, err = os.Stat(svc.AbsolutePath(imagePath))
	require.NoError(t, err)
	_, err = os.Stat(svc.AbsolutePath(cachedPath))
	require.NoError(t, err)

	// The preview is downscaled to the cap.
	preview, err := imaging.Open(svc.AbsolutePath(cachedPath))
	require.NoError(t, err)
	assert.Equal(t, previewMaxWidth, preview.Bounds().Dx())
}

func TestFileServicePreviewKeepsSmallImages(t *testing.T) {
	t.Parallel()

	svc := newTestFileService(t)
	img := image.NewRGBA(image.Rect(0, 0, 640, 360))

	_, cachedPath, err := svc.SavePageImage(img, uuid.New(), uuid.New(), 1)
	require.NoError(t, err)

	preview, err := imaging.Open(svc.AbsolutePath(cachedPath))
	require.NoError(t, err)
	assert.Equal(t, 640, preview.Bounds().Dx())
}

func TestFileServiceMaterials(t *testing.T) {
	t.Parallel()

	t.Run("project material", func(t *testing.T) {
		t.Parallel()

		svc := newTestFileService(t)
		projectID := uuid.New()
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))

		relativePath, url, filename, err := svc.SaveMaterialImage(img, &projectID)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(relativePath, "projects/"+projectID.String()+"/materials/"))
		assert.Equal(t, "/files/"+relativePath, url)
		assert.True(t, strings.HasSuffix(relativePath, filename))
		_, err = os.Stat(svc.AbsolutePath(relativePath))
		require.NoError(t, err)
	})

	t.Run("global material", func(t *testing.T) {
		t.Parallel()

		svc := newTestFileService(t)
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))

		relativePath, _, _, err := svc.SaveMaterialImage(img, nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(relativePath, "materials/"))
	})
}

func TestFileServiceExportPaths(t *testing.T) {
	t.Parallel()

	svc := newTestFileService(t)
	projectID := uuid.New()

	t.Run("adds the pptx suffix", func(t *testing.T) {
		absPath, filename, err := svc.EnsureExportPath(projectID, "deck")
		require.NoError(t, err)
		assert.Equal(t, "deck.pptx", filename)
		assert.True(t, strings.HasSuffix(absPath, filepath.Join("exports", "deck.pptx")))
	})

	t.Run("collision gets a timestamp suffix", func(t *testing.T) {
		absPath, filename, err := svc.EnsureExportPath(projectID, "taken.pptx")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(absPath, []byte("existing"), 0o644))

		_, second, err := svc.EnsureExportPath(projectID, "taken.pptx")
		require.NoError(t, err)
		assert.NotEqual(t, filename, second)
		assert.True(t, strings.HasPrefix(second, "taken_"))
		assert.True(t, strings.HasSuffix(second, ".pptx"))
	})

	t.Run("download url matches the layout", func(t *testing.T) {
		url := svc.ExportURL(projectID, "deck.pptx")
		assert.Equal(t, "/files/projects/"+projectID.String()+"/exports/deck.pptx", url)
	})
}

func TestNewFileServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewFileService("", "/files", testLogger())
	assert.Error(t, err)

	_, err = NewFileService(t.TempDir(), "/files", nil)
	assert.Error(t, err)
}
