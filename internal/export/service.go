package export

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"
)

// ElementKind classifies one recovered slide element.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
	ElementTable ElementKind = "table"
)

// Element is one editable piece recovered from a slide image.
type Element struct {
	Kind  ElementKind
	Box   BBox
	Text  string
	Style TextStyle

	// ImagePath is the cropped sub-image for image elements.
	ImagePath string

	// Cells is row-major table content for table elements.
	Cells [][]string
}

// PageLayout is the analysis result for one slide image: a clean
// background with the foreground content lifted into elements.
type PageLayout struct {
	// BackgroundPath is the inpainted background image. Empty means the
	// analyzer could not produce one and the original should be used.
	BackgroundPath string
	Elements       []Element
}

// PageAnalyzer decomposes one slide image into an editable layout.
// Implementations call external layout/inpainting services and may be
// invoked concurrently.
type PageAnalyzer interface {
	Analyze(ctx context.Context, imagePath string) (*PageLayout, error)
}

// ProgressFn receives coarse progress while an export runs. percent is
// 0..100 across the whole run.
type ProgressFn func(step, message string, percent int)

// Request describes one export run.
type Request struct {
	// ImagePaths are the slide images in deck order, absolute paths.
	ImagePaths []string

	// OutputPath is where the finished document is written.
	OutputPath string

	// AllowPartial degrades pages whose analysis fails to a flat
	// full-page image instead of failing the run.
	AllowPartial bool

	MaxWorkers int

	// Progress is optional.
	Progress ProgressFn
}

// Result is the outcome of a successful export run.
type Result struct {
	OutputPath string
	PageCount  int
	Warnings   *Warnings
}

// Service builds editable presentation documents from slide images.
type Service struct {
	analyzer   PageAnalyzer
	newBuilder func() DocumentBuilder
	logger     *slog.Logger
}

// NewService creates an export service. newBuilder is called once per
// run to get a fresh document.
func NewService(analyzer PageAnalyzer, newBuilder func() DocumentBuilder, logger *slog.Logger) (*Service, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("page analyzer cannot be nil")
	}
	if newBuilder == nil {
		return nil, fmt.Errorf("builder factory cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Service{analyzer: analyzer, newBuilder: newBuilder, logger: logger}, nil
}

// Export analyzes every slide image concurrently, then assembles the
// document slide by slide in deck order. Analysis failures either fail
// the run with a structured Error or, when the request allows partial
// results, degrade that page to its flat image with a warning.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if len(req.ImagePaths) == 0 {
		return nil, &Error{
			Kind:     KindNoImages,
			Message:  "no slide images to export",
			HelpText: "Generate page images before exporting.",
		}
	}
	if req.MaxWorkers <= 0 {
		req.MaxWorkers = 4
	}
	progress := req.Progress
	if progress == nil {
		progress = func(string, string, int) {}
	}
	warnings := &Warnings{}

	width, height, err := imageSize(req.ImagePaths[0])
	if err != nil {
		return nil, &Error{
			Kind:    KindNoImages,
			Message: "failed to read the first slide image",
			Err:     err,
		}
	}
	progress("prepare", fmt.Sprintf("slide size %dx%d, %d pages", width, height, len(req.ImagePaths)), 5)

	layouts, err := s.analyzePages(ctx, req, warnings, progress)
	if err != nil {
		return nil, err
	}

	progress("build", "assembling document", 85)
	builder := s.newBuilder()
	if err := builder.SetSlideSize(width, height); err != nil {
		return nil, &Error{Kind: KindBuildFailed, Message: "failed to size slides", Err: err}
	}

	for i, layout := range layouts {
		if err := s.buildSlide(builder, req.ImagePaths[i], layout); err != nil {
			return nil, &Error{
				Kind:    KindBuildFailed,
				Message: fmt.Sprintf("failed to build slide %d", i+1),
				Details: map[string]any{"page": i + 1},
				Err:     err,
			}
		}
	}

	progress("save", "writing document", 95)
	if err := builder.Save(req.OutputPath); err != nil {
		return nil, &Error{Kind: KindWriteFailed, Message: "failed to write document", Err: err}
	}
	progress("done", "export complete", 100)

	return &Result{
		OutputPath: req.OutputPath,
		PageCount:  len(req.ImagePaths),
		Warnings:   warnings,
	}, nil
}

// analyzePages runs the analyzer over all pages on a bounded pool and
// returns the layouts in deck order. A nil layout means the page
// degraded to its flat image.
func (s *Service) analyzePages(ctx context.Context, req Request, warnings *Warnings, progress ProgressFn) ([]*PageLayout, error) {
	total := len(req.ImagePaths)
	layouts := make([]*PageLayout, total)
	sem := make(chan struct{}, req.MaxWorkers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
	)

	for i, path := range req.ImagePaths {
		wg.Add(1)
		go func(index int, imagePath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// A fail-fast run is already lost once any page has failed,
			// so pages still waiting on the pool skip their analysis
			// call instead of spending more API budget.
			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted || ctx.Err() != nil {
				return
			}

			layout, err := s.analyzer.Analyze(ctx, imagePath)

			mu.Lock()
			defer mu.Unlock()
			done++
			// Analysis spans 10..80 percent of the run.
			percent := 10 + (done*70)/total

			if err != nil {
				if !req.AllowPartial {
					if firstErr == nil {
						firstErr = &Error{
							Kind:     KindAnalysisFailed,
							Message:  fmt.Sprintf("failed to analyze slide %d", index+1),
							HelpText: "Enable partial export to fall back to flat images for failing pages.",
							Details:  map[string]any{"page": index + 1},
							Err:      err,
						}
					}
					return
				}
				s.logger.Warn("page analysis degraded to flat image",
					"page", index+1, "error", err)
				warnings.Add(index+1, KindAnalysisFailed, "analysis failed, exported as a flat image")
				progress("analyze", fmt.Sprintf("page %d degraded to flat image", index+1), percent)
				return
			}

			layouts[index] = layout
			progress("analyze", fmt.Sprintf("page %d analyzed", index+1), percent)
		}(i, path)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return layouts, nil
}

// buildSlide writes one slide: background first, then elements in
// analysis order so later elements layer on top.
func (s *Service) buildSlide(builder DocumentBuilder, originalPath string, layout *PageLayout) error {
	slide, err := builder.AddBlankSlide()
	if err != nil {
		return err
	}

	background := originalPath
	var elements []Element
	if layout != nil {
		if layout.BackgroundPath != "" {
			if _, err := os.Stat(layout.BackgroundPath); err == nil {
				background = layout.BackgroundPath
			}
		}
		elements = layout.Elements
	}

	if err := builder.AddImageElement(slide, background, BBox{}); err != nil {
		return fmt.Errorf("background: %w", err)
	}

	for _, element := range elements {
		switch element.Kind {
		case ElementText:
			if err := builder.AddTextElement(slide, element.Text, element.Box, element.Style); err != nil {
				return fmt.Errorf("text element: %w", err)
			}
		case ElementImage:
			if err := builder.AddImageElement(slide, element.ImagePath, element.Box); err != nil {
				return fmt.Errorf("image element: %w", err)
			}
		case ElementTable:
			if err := builder.AddTableElement(slide, element.Cells, element.Box); err != nil {
				return fmt.Errorf("table element: %w", err)
			}
		}
	}
	return nil
}

// imageSize reads just the dimensions of an image file.
func imageSize(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
