package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PageContent is the structured content extracted from one parsed page.
type PageContent struct {
	Title       string   `json:"title"`
	Points      []string `json:"points"`
	Description string   `json:"description"`
}

// ExtractPageContent asks the text model to turn one page's markdown
// into structured content and parses the JSON answer.
func ExtractPageContent(ctx context.Context, gen TextGenerator, markdown, language string) (PageContent, error) {
	raw, err := gen.GenerateText(ctx, ExtractPagePrompt(markdown, language), TextOptions{Language: language})
	if err != nil {
		return PageContent{}, err
	}
	return ParsePageContent(raw)
}

// ParsePageContent parses a model answer into PageContent. Models often
// wrap JSON in markdown code fences or surrounding prose, so the parse
// is anchored to the outermost braces.
func ParsePageContent(raw string) (PageContent, error) {
	cleaned := stripCodeFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return PageContent{}, fmt.Errorf("%w: no JSON object in response", ErrParseFailed)
	}

	var content PageContent
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &content); err != nil {
		return PageContent{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if content.Title == "" && content.Description == "" && len(content.Points) == 0 {
		return PageContent{}, fmt.Errorf("%w: response carries no content", ErrParseFailed)
	}
	return content, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
