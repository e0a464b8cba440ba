package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTestPNG writes a small PNG and returns its path.
func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))))
	return path
}

func slideImages(t *testing.T, count int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, count)
	for i := range paths {
		paths[i] = writeTestPNG(t, dir, fmt.Sprintf("page_%d.png", i+1), 1280, 720)
	}
	return paths
}

// stubAnalyzer returns canned layouts keyed by image path.
type stubAnalyzer struct {
	mu      sync.Mutex
	layouts map[string]*PageLayout
	errs    map[string]error
	calls   []string
}

func (a *stubAnalyzer) Analyze(_ context.Context, imagePath string) (*PageLayout, error) {
	a.mu.Lock()
	a.calls = append(a.calls, imagePath)
	a.mu.Unlock()
	if err := a.errs[imagePath]; err != nil {
		return nil, err
	}
	if layout := a.layouts[imagePath]; layout != nil {
		return layout, nil
	}
	return &PageLayout{}, nil
}

// recordingBuilder captures every call so tests can assert assembly order.
type recordingBuilder struct {
	width, height int
	slides        int
	images        []string
	texts         []string
	tables        int
	savedPath     string
	saveErr       error
}

func (b *recordingBuilder) SetSlideSize(widthPx, heightPx int) error {
	b.width, b.height = widthPx, heightPx
	return nil
}

func (b *recordingBuilder) AddBlankSlide() (int, error) {
	b.slides++
	return b.slides - 1, nil
}

func (b *recordingBuilder) AddImageElement(_ int, imagePath string, _ BBox) error {
	b.images = append(b.images, imagePath)
	return nil
}

func (b *recordingBuilder) AddTextElement(_ int, text string, _ BBox, _ TextStyle) error {
	b.texts = append(b.texts, text)
	return nil
}

func (b *recordingBuilder) AddTableElement(_ int, cells [][]string, _ BBox) error {
	b.tables++
	return nil
}

func (b *recordingBuilder) Save(path string) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.savedPath = path
	return nil
}

func (b *recordingBuilder) Bytes() ([]byte, error) {
	return []byte("pptx"), nil
}

func newExportService(t *testing.T, analyzer PageAnalyzer, builder *recordingBuilder) *Service {
	t.Helper()
	svc, err := NewService(analyzer, func() DocumentBuilder { return builder }, testLogger())
	require.NoError(t, err)
	return svc
}

func TestExportAssemblesEveryPage(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 3)
	background := writeTestPNG(t, t.TempDir(), "bg.png", 1280, 720)
	analyzer := &stubAnalyzer{layouts: map[string]*PageLayout{
		paths[0]: {
			BackgroundPath: background,
			Elements: []Element{
				{Kind: ElementText, Text: "Title", Box: BBox{X: 100, Y: 50, Width: 600, Height: 80}},
				{Kind: ElementTable, Cells: [][]string{{"a", "b"}}, Box: BBox{X: 100, Y: 200, Width: 600, Height: 200}},
			},
		},
	}}
	builder := &recordingBuilder{}
	svc := newExportService(t, analyzer, builder)

	outputPath := filepath.Join(t.TempDir(), "deck.pptx")
	var lastPercent int
	result, err := svc.Export(context.Background(), Request{
		ImagePaths: paths,
		OutputPath: outputPath,
		MaxWorkers: 2,
		Progress:   func(_, _ string, percent int) { lastPercent = percent },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, outputPath, result.OutputPath)
	assert.False(t, result.Warnings.HasWarnings())
	assert.Equal(t, 100, lastPercent)

	assert.Equal(t, 1280, builder.width)
	assert.Equal(t, 720, builder.height)
	assert.Equal(t, 3, builder.slides)
	// The analyzed page uses the inpainted background, the others their
	// original images.
	assert.Equal(t, []string{background, paths[1], paths[2]}, builder.images)
	assert.Equal(t, []string{"Title"}, builder.texts)
	assert.Equal(t, 1, builder.tables)
	assert.Equal(t, outputPath, builder.savedPath)
}

func TestExportMissingBackgroundFallsBackToOriginal(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 1)
	analyzer := &stubAnalyzer{layouts: map[string]*PageLayout{
		paths[0]: {BackgroundPath: filepath.Join(t.TempDir(), "missing.png")},
	}}
	builder := &recordingBuilder{}
	svc := newExportService(t, analyzer, builder)

	_, err := svc.Export(context.Background(), Request{
		ImagePaths: paths,
		OutputPath: filepath.Join(t.TempDir(), "deck.pptx"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{paths[0]}, builder.images)
}

func TestExportAnalysisFailureFailsTheRun(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 3)
	analysisErr := errors.New("layout service unavailable")
	analyzer := &stubAnalyzer{errs: map[string]error{paths[1]: analysisErr}}
	builder := &recordingBuilder{}
	svc := newExportService(t, analyzer, builder)

	_, err := svc.Export(context.Background(), Request{
		ImagePaths: paths,
		OutputPath: filepath.Join(t.TempDir(), "deck.pptx"),
		MaxWorkers: 1,
	})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindAnalysisFailed, exportErr.Kind)
	assert.Equal(t, 2, exportErr.Details["page"])
	assert.NotEmpty(t, exportErr.HelpText)
	assert.ErrorIs(t, err, analysisErr)
	assert.Empty(t, builder.savedPath)
}

func TestExportFailFastSkipsQueuedAnalysis(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 3)
	analyzer := &stubAnalyzer{errs: map[string]error{
		paths[0]: errors.New("layout service unavailable"),
		paths[1]: errors.New("layout service unavailable"),
		paths[2]: errors.New("layout service unavailable"),
	}}
	svc := newExportService(t, analyzer, &recordingBuilder{})

	_, err := svc.Export(context.Background(), Request{
		ImagePaths: paths,
		OutputPath: filepath.Join(t.TempDir(), "deck.pptx"),
		MaxWorkers: 1,
	})
	require.Error(t, err)
	assert.Len(t, analyzer.calls, 1, "pages queued behind the first failure skip analysis")
}

func TestExportAllowPartialDegradesFailedPages(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 3)
	analyzer := &stubAnalyzer{errs: map[string]error{paths[1]: errors.New("analysis timeout")}}
	builder := &recordingBuilder{}
	svc := newExportService(t, analyzer, builder)

	result, err := svc.Export(context.Background(), Request{
		ImagePaths:   paths,
		OutputPath:   filepath.Join(t.TempDir(), "deck.pptx"),
		AllowPartial: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.PageCount)
	require.True(t, result.Warnings.HasWarnings())
	summary := result.Warnings.Summary()
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0], "page 2")

	details := result.Warnings.Details()
	assert.Contains(t, details, KindAnalysisFailed)

	// The failed page still ships as its flat image.
	assert.Equal(t, 3, builder.slides)
	assert.Contains(t, builder.images, paths[1])
}

func TestExportNoImages(t *testing.T) {
	t.Parallel()

	svc := newExportService(t, &stubAnalyzer{}, &recordingBuilder{})

	_, err := svc.Export(context.Background(), Request{})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindNoImages, exportErr.Kind)
	assert.NotEmpty(t, exportErr.HelpText)
}

func TestExportSaveFailure(t *testing.T) {
	t.Parallel()

	paths := slideImages(t, 1)
	builder := &recordingBuilder{saveErr: errors.New("disk full")}
	svc := newExportService(t, &stubAnalyzer{}, builder)

	_, err := svc.Export(context.Background(), Request{
		ImagePaths: paths,
		OutputPath: filepath.Join(t.TempDir(), "deck.pptx"),
	})
	require.Error(t, err)

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindWriteFailed, exportErr.Kind)
}
