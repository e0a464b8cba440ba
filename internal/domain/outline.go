package domain

import "errors"

// Common outline errors
var (
	ErrEmptyOutline = errors.New("outline has no pages")
)

// OutlineSection groups consecutive pages under one part of the deck.
type OutlineSection struct {
	Part  string         `json:"part,omitempty"`
	Pages []OutlineEntry `json:"pages"`
}

// Outline is the full deck structure produced by outline generation.
// Flattened, its entries correspond 1:1 by position to the project's
// pages ordered by OrderIndex.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

// Flatten returns the outline's page entries in deck order.
func (o *Outline) Flatten() []OutlineEntry {
	var entries []OutlineEntry
	for _, section := range o.Sections {
		entries = append(entries, section.Pages...)
	}
	return entries
}

// Validate checks that the outline contains at least one page entry.
func (o *Outline) Validate() error {
	if len(o.Flatten()) == 0 {
		return ErrEmptyOutline
	}
	return nil
}
