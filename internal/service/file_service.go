package service

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
)

// previewMaxWidth caps the compressed preview the frontend polls while
// full-resolution artifacts stay untouched on disk.
const previewMaxWidth = 1280

// previewQuality is the JPEG quality of cached previews.
const previewQuality = 85

// FileService owns the project file layout under a single data root:
//
//	projects/<project>/pages/<page>/v<N>.png        full-resolution artifacts
//	projects/<project>/pages/<page>/cache/v<N>.jpg  compressed previews
//	projects/<project>/materials/<file>.png         material images
//	projects/<project>/exports/<file>.pptx          export output
//	materials/<file>.png                            global materials
//
// Stores persist paths relative to the root so the root can move
// between environments.
type FileService struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewFileService creates a FileService rooted at dataRoot. baseURL is
// the public prefix under which the root is served, e.g. "/files".
func NewFileService(dataRoot, baseURL string, logger *slog.Logger) (*FileService, error) {
	if dataRoot == "" {
		return nil, domain.NewValidationError("dataRoot", "cannot be empty", domain.ErrValidation)
	}
	if logger == nil {
		return nil, domain.NewValidationError("logger", "cannot be nil", domain.ErrValidation)
	}
	if baseURL == "" {
		baseURL = "/files"
	}
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	return &FileService{
		root:    dataRoot,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With(slog.String("component", "file_service")),
	}, nil
}

// AbsolutePath resolves a stored relative path against the data root.
func (s *FileService) AbsolutePath(relativePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relativePath))
}

// FileURL returns the public URL for a stored relative path.
func (s *FileService) FileURL(relativePath string) string {
	return s.baseURL + "/" + filepath.ToSlash(relativePath)
}

// SavePageImage writes one page image version: the full-resolution PNG
// and its compressed JPEG preview. Returns both paths relative to the
// data root.
func (s *FileService) SavePageImage(img image.Image, projectID, pageID uuid.UUID, versionNumber int) (imagePath, cachedPath string, err error) {
	pageDir := filepath.Join("projects", projectID.String(), "pages", pageID.String())
	imagePath = filepath.ToSlash(filepath.Join(pageDir, fmt.Sprintf("v%d.png", versionNumber)))
	cachedPath = filepath.ToSlash(filepath.Join(pageDir, "cache", fmt.Sprintf("v%d.jpg", versionNumber)))

	if err := os.MkdirAll(filepath.Dir(s.AbsolutePath(cachedPath)), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create page directory: %w", err)
	}

	if err := imaging.Save(img, s.AbsolutePath(imagePath)); err != nil {
		return "", "", fmt.Errorf("failed to save page image: %w", err)
	}

	preview := img
	if img.Bounds().Dx() > previewMaxWidth {
		preview = imaging.Resize(img, previewMaxWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(preview, s.AbsolutePath(cachedPath), imaging.JPEGQuality(previewQuality)); err != nil {
		return "", "", fmt.Errorf("failed to save preview image: %w", err)
	}

	s.logger.Debug("page image saved",
		"page_id", pageID, "version", versionNumber, "path", imagePath)
	return imagePath, cachedPath, nil
}

// SaveMaterialImage writes a material image under the owning project,
// or under the global materials directory when projectID is nil.
// Returns the relative path, public URL, and generated filename.
func (s *FileService) SaveMaterialImage(img image.Image, projectID *uuid.UUID) (relativePath, url, filename string, err error) {
	filename = fmt.Sprintf("material_%s.png", uuid.NewString())

	dir := "materials"
	if projectID != nil {
		dir = filepath.Join("projects", projectID.String(), "materials")
	}
	relativePath = filepath.ToSlash(filepath.Join(dir, filename))

	if err := os.MkdirAll(filepath.Dir(s.AbsolutePath(relativePath)), 0o755); err != nil {
		return "", "", "", fmt.Errorf("failed to create materials directory: %w", err)
	}
	if err := imaging.Save(img, s.AbsolutePath(relativePath)); err != nil {
		return "", "", "", fmt.Errorf("failed to save material image: %w", err)
	}
	return relativePath, s.FileURL(relativePath), filename, nil
}

// EnsureExportPath prepares the output location for an export. The
// exports directory is created, a ".pptx" suffix enforced, and name
// collisions resolved with a timestamp suffix. Returns the absolute
// output path and the final filename.
func (s *FileService) EnsureExportPath(projectID uuid.UUID, filename string) (string, string, error) {
	if !strings.HasSuffix(filename, ".pptx") {
		filename += ".pptx"
	}

	exportsDir := filepath.Join("projects", projectID.String(), "exports")
	if err := os.MkdirAll(s.AbsolutePath(exportsDir), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create exports directory: %w", err)
	}

	absPath := s.AbsolutePath(filepath.Join(exportsDir, filename))
	if _, err := os.Stat(absPath); err == nil {
		base := strings.TrimSuffix(filename, ".pptx")
		filename = fmt.Sprintf("%s_%s.pptx", base, time.Now().UTC().Format("20060102_150405"))
		absPath = s.AbsolutePath(filepath.Join(exportsDir, filename))
	}
	return absPath, filename, nil
}

// ExportURL returns the download URL for a finished export.
func (s *FileService) ExportURL(projectID uuid.UUID, filename string) string {
	return s.FileURL(filepath.Join("projects", projectID.String(), "exports", filename))
}

// RemoveProjectFiles deletes every stored file of a project.
func (s *FileService) RemoveProjectFiles(projectID uuid.UUID) error {
	return os.RemoveAll(s.AbsolutePath(filepath.Join("projects", projectID.String())))
}
