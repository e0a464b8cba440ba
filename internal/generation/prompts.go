package generation

import (
	"fmt"
	"strings"

	"github.com/guojun21/banana-slides/internal/domain"
)

// languageInstruction maps a language code to the instruction appended
// to prompts. "auto" and unknown codes add nothing.
func languageInstruction(language string) string {
	switch language {
	case "zh":
		return "Respond in Simplified Chinese."
	case "en":
		return "Respond in English."
	case "ja":
		return "Respond in Japanese."
	default:
		return ""
	}
}

// PageDescriptionPrompt builds the prompt for generating one page's
// visual description from its outline entry and the full deck outline.
func PageDescriptionPrompt(outline domain.Outline, entry domain.OutlineEntry, pageIndex, pageCount int, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are designing slide %d of %d in a deck titled %q.\n", pageIndex, pageCount, outline.Title)
	fmt.Fprintf(&b, "This slide's title: %q.\n", entry.Title)
	if len(entry.Points) > 0 {
		b.WriteString("Key points:\n")
		for _, point := range entry.Points {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	b.WriteString("\nWrite a detailed visual description of this slide: layout, text placement, imagery, and emphasis. Keep it concrete enough to render from.\n")
	if instr := languageInstruction(language); instr != "" {
		b.WriteString(instr)
		b.WriteString("\n")
	}
	return b.String()
}

// ImagePrompt builds the prompt for rendering one slide image from its
// description.
func ImagePrompt(entry domain.OutlineEntry, description string, pageIndex int, hasTemplate bool, extraRequirements, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Render slide %d as a single presentation slide image.\n", pageIndex)
	fmt.Fprintf(&b, "Slide title: %q.\n", entry.Title)
	b.WriteString("Slide content description:\n")
	b.WriteString(description)
	b.WriteString("\n")
	if hasTemplate {
		b.WriteString("Match the visual style of the attached template image.\n")
	}
	if extraRequirements != "" {
		fmt.Fprintf(&b, "Additional requirements: %s\n", extraRequirements)
	}
	if instr := languageInstruction(language); instr != "" {
		b.WriteString(instr)
		b.WriteString("\n")
	}
	return b.String()
}

// EditImagePrompt builds the prompt for editing an existing slide image.
func EditImagePrompt(instruction, originalDescription string) string {
	var b strings.Builder
	b.WriteString("Edit the attached slide image.\n")
	fmt.Fprintf(&b, "Edit instruction: %s\n", instruction)
	if originalDescription != "" {
		b.WriteString("Original slide description, for context:\n")
		b.WriteString(originalDescription)
		b.WriteString("\n")
	}
	b.WriteString("Preserve everything not covered by the instruction.\n")
	return b.String()
}

// ExtractPagePrompt builds the prompt that turns one parsed page's
// markdown into structured content. The model must answer with a JSON
// object {"title": ..., "points": [...], "description": ...}.
func ExtractPagePrompt(markdown, language string) string {
	var b strings.Builder
	b.WriteString("Extract the slide content from the following page text.\n")
	b.WriteString("Answer with a single JSON object with keys \"title\" (string), \"points\" (array of strings), and \"description\" (string describing the slide's full content).\n\n")
	b.WriteString(markdown)
	b.WriteString("\n")
	if instr := languageInstruction(language); instr != "" {
		b.WriteString(instr)
		b.WriteString("\n")
	}
	return b.String()
}

// BeautifyPrompt builds the prompt for image-to-image slide renovation.
func BeautifyPrompt(style, language string) string {
	var b strings.Builder
	b.WriteString("Redesign the attached presentation slide with a cleaner, modern visual style while keeping all of its content and meaning intact.\n")
	if style != "" {
		fmt.Fprintf(&b, "Target style: %s\n", style)
	}
	if instr := languageInstruction(language); instr != "" {
		b.WriteString(instr)
		b.WriteString("\n")
	}
	return b.String()
}

// LayoutCaptionPrompt asks a vision model to describe the layout of an
// existing slide image so the description keeps the original structure.
func LayoutCaptionPrompt() string {
	return "Describe the layout of the attached slide image: regions, their relative positions and sizes, and where text and imagery sit. Be brief and structural."
}
