package export

import (
	"fmt"
	"sync"
)

// Warnings collects non-fatal per-page degradations during an export
// run. Safe for concurrent use by analysis workers.
type Warnings struct {
	mu      sync.Mutex
	entries []warning
}

type warning struct {
	Page    int
	Kind    string
	Message string
}

// Add records one degradation for a page (1-based).
func (w *Warnings) Add(page int, kind, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, warning{Page: page, Kind: kind, Message: message})
}

// HasWarnings reports whether anything was recorded.
func (w *Warnings) HasWarnings() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries) > 0
}

// Summary returns one human-readable line per warning, in record order.
func (w *Warnings) Summary() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.entries))
	for i, entry := range w.entries {
		out[i] = fmt.Sprintf("page %d: %s", entry.Page, entry.Message)
	}
	return out
}

// Details returns the warnings grouped by kind for the progress record.
func (w *Warnings) Details() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	byKind := make(map[string][]map[string]any)
	for _, entry := range w.entries {
		byKind[entry.Kind] = append(byKind[entry.Kind], map[string]any{
			"page":    entry.Page,
			"message": entry.Message,
		})
	}
	out := make(map[string]any, len(byKind))
	for kind, items := range byKind {
		out[kind] = items
	}
	return out
}
