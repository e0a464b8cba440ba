// Package pdf splits multi-page PDF documents into single-page units
// for the renovation pipeline.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/guojun21/banana-slides/internal/generation"
)

// ErrUnsupportedDocument is returned for source files the splitter
// cannot handle.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// Splitter implements generation.DocumentSplitter for PDF sources.
type Splitter struct {
	logger *slog.Logger
}

// NewSplitter creates a new Splitter.
func NewSplitter(logger *slog.Logger) (*Splitter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Splitter{
		logger: logger.With(slog.String("component", "pdf_splitter")),
	}, nil
}

var _ generation.DocumentSplitter = (*Splitter)(nil)

// Split writes one single-page PDF per source page under outDir and
// returns their paths in page order.
func (s *Splitter) Split(ctx context.Context, docPath, outDir string) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(docPath), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filepath.Ext(docPath))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create split directory: %w", err)
	}

	if err := api.SplitFile(docPath, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", docPath, err)
	}

	units, err := collectUnits(docPath, outDir)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("split of %s produced no pages", docPath)
	}

	s.logger.DebugContext(ctx, "document split",
		"doc_path", docPath,
		"pages", len(units))
	return units, nil
}

// collectUnits gathers the per-page files pdfcpu wrote, ordered by
// their page number suffix. The suffix is parsed numerically because a
// lexical sort puts page 10 before page 2.
func collectUnits(docPath, outDir string) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	matches, err := filepath.Glob(filepath.Join(outDir, base+"_*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list split pages: %w", err)
	}

	type unit struct {
		page int
		path string
	}
	units := make([]unit, 0, len(matches))
	for _, path := range matches {
		page, ok := pageNumberOf(base, path)
		if !ok {
			continue
		}
		units = append(units, unit{page: page, path: path})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].page < units[j].page })

	paths := make([]string, len(units))
	for i, u := range units {
		paths[i] = u.path
	}
	return paths, nil
}

// pageNumberOf extracts the page number from a split filename like
// deck_3.pdf.
func pageNumberOf(base, path string) (int, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".pdf")
	suffix := strings.TrimPrefix(name, base+"_")
	page, err := strconv.Atoi(suffix)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
