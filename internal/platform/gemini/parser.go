package gemini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/guojun21/banana-slides/internal/generation"
)

// documentParsePrompt converts one source document unit into markdown
// for the renovation pipeline.
const documentParsePrompt = `Convert this document page to clean markdown.

Preserve headings, lists and tables. Transcribe all visible text.
Describe charts and figures in one bracketed line, like
[chart: quarterly revenue by region]. Return only the markdown.`

var _ generation.DocumentParser = (*Generator)(nil)

// Parse implements generation.DocumentParser. The unit file is sent to
// the model inline, so ExtractID stays empty: there is no external
// parse job to refer back to.
func (g *Generator) Parse(ctx context.Context, filePath string) (generation.ParseResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return generation.ParseResult{}, fmt.Errorf("failed to read document %s: %w", filePath, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, documentMimeType(filePath)),
		genai.NewPartFromText(documentParsePrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.callWithRetry(ctx, g.config.TextModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return generation.ParseResult{}, err
	}

	markdown := strings.TrimSpace(responseText(resp))
	if markdown == "" {
		return generation.ParseResult{}, fmt.Errorf("%w: parse response carried no text",
			generation.ErrEmptyOutput)
	}
	return generation.ParseResult{Markdown: markdown}, nil
}

// documentMimeType resolves the MIME type for a document unit. PDF is
// pinned explicitly; everything else falls back to extension lookup.
func documentMimeType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "application/pdf"
	}
	return mimeTypeOf(path)
}
