package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/guojun21/banana-slides/internal/export"
	"github.com/guojun21/banana-slides/internal/generation"
)

// slideAnalysisPrompt asks the model to decompose a slide image into
// editable elements with pixel bounding boxes. The response must be a
// single JSON object so it can be parsed without heuristics.
const slideAnalysisPrompt = `Analyze this slide image and return its editable elements as JSON.

Return a single JSON object with this shape and nothing else:
{"elements": [{"type": "text", "bbox": [x, y, width, height], "text": "...",
"font_size_pt": 24, "bold": false, "italic": false, "color": "#1A1A2E",
"align": "left"}, {"type": "table", "bbox": [x, y, width, height],
"cells": [["r1c1", "r1c2"], ["r2c1", "r2c2"]]}]}

Coordinates are pixels in the original image. Report every distinct text
block and table. Do not report decorative graphics or the background.`

var _ export.PageAnalyzer = (*Generator)(nil)

// Analyze implements export.PageAnalyzer. It recovers text and table
// elements from one slide image. BackgroundPath is always empty: there
// is no inpainting backend here, so the exporter keeps the original
// image underneath the recovered elements.
func (g *Generator) Analyze(ctx context.Context, imagePath string) (*export.PageLayout, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read slide image %s: %w", imagePath, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeTypeOf(imagePath)),
		genai.NewPartFromText(slideAnalysisPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := g.callWithRetry(ctx, g.config.TextModel, contents, genConfig)
	if err != nil {
		return nil, err
	}

	raw := responseText(resp)
	if raw == "" {
		return nil, fmt.Errorf("%w: analysis response carried no text", generation.ErrEmptyOutput)
	}

	layout, err := parseSlideLayout(raw)
	if err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "slide analyzed",
		"image_path", imagePath,
		"elements", len(layout.Elements))
	return layout, nil
}

// slideElementPayload is the wire shape of one analyzed element.
type slideElementPayload struct {
	Type       string     `json:"type"`
	BBox       []float64  `json:"bbox"`
	Text       string     `json:"text"`
	FontSizePt float64    `json:"font_size_pt"`
	Bold       bool       `json:"bold"`
	Italic     bool       `json:"italic"`
	Color      string     `json:"color"`
	Align      string     `json:"align"`
	Cells      [][]string `json:"cells"`
}

// parseSlideLayout decodes the model's JSON into a PageLayout. Elements
// with an unknown type or a malformed bounding box are skipped rather
// than failing the page.
func parseSlideLayout(raw string) (*export.PageLayout, error) {
	var payload struct {
		Elements []slideElementPayload `json:"elements"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: slide analysis is not valid JSON: %v",
			generation.ErrParseFailed, err)
	}

	layout := &export.PageLayout{}
	for _, el := range payload.Elements {
		if len(el.BBox) != 4 {
			continue
		}
		box := export.BBox{X: el.BBox[0], Y: el.BBox[1], Width: el.BBox[2], Height: el.BBox[3]}

		switch el.Type {
		case "text":
			if el.Text == "" {
				continue
			}
			layout.Elements = append(layout.Elements, export.Element{
				Kind: export.ElementText,
				Box:  box,
				Text: el.Text,
				Style: export.TextStyle{
					FontSizePt: el.FontSizePt,
					Bold:       el.Bold,
					Italic:     el.Italic,
					ColorHex:   el.Color,
					Align:      el.Align,
				},
			})
		case "table":
			if len(el.Cells) == 0 {
				continue
			}
			layout.Elements = append(layout.Elements, export.Element{
				Kind:  export.ElementTable,
				Box:   box,
				Cells: el.Cells,
			})
		}
	}
	return layout, nil
}

// extractJSON trims markdown code fences and any prose around the
// outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
