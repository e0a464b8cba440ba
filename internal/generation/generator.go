package generation

import (
	"context"
	"image"
)

// TextOptions tunes a single text generation call.
type TextOptions struct {
	// ThinkingBudget caps the model's internal reasoning tokens.
	// Zero means provider default.
	ThinkingBudget int32

	// Language is the requested output language ("zh", "en", "ja", "auto").
	Language string
}

// TextGenerator defines the boundary between the pipelines and external
// text models. Implementations live in internal/platform.
type TextGenerator interface {
	// GenerateText produces text for the given prompt.
	GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error)
}

// ImageRequest describes a single image generation or edit call.
type ImageRequest struct {
	Prompt string

	// RefImagePaths are local paths of reference images (template image
	// first, then any material images). Empty for pure text-to-image.
	RefImagePaths []string

	// AspectRatio like "16:9".
	AspectRatio string

	// Resolution like "2K".
	Resolution string

	ThinkingBudget int32
}

// ImageGenerator defines the boundary between the pipelines and external
// image models.
type ImageGenerator interface {
	// GenerateImage produces one image for the request, or an error if
	// the provider returns none.
	GenerateImage(ctx context.Context, req ImageRequest) (image.Image, error)
}

// ParseResult is the outcome of parsing one source document unit.
type ParseResult struct {
	// Markdown is the extracted text content.
	Markdown string

	// ExtractID identifies the parse job at the external service, used
	// to fetch auxiliary layout data.
	ExtractID string
}

// DocumentParser defines the boundary to the external document parsing
// service used by the renovation pipeline.
type DocumentParser interface {
	// Parse converts one document file into markdown text.
	Parse(ctx context.Context, filePath string) (ParseResult, error)
}

// DocumentSplitter splits a multi-page source document into per-unit
// files, one per output page.
type DocumentSplitter interface {
	// Split writes one file per page under outDir and returns their
	// paths in page order.
	Split(ctx context.Context, docPath, outDir string) ([]string, error)
}

// LayoutCaptioner describes the structural layout of an existing slide
// image. Used by the renovation pipeline when the original layout should
// be preserved.
type LayoutCaptioner interface {
	// CaptionLayout returns a brief structural description of the image
	// at the given local path.
	CaptionLayout(ctx context.Context, imagePath string) (string, error)
}
