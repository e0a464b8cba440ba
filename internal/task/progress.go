package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// maxProgressMessages bounds the messages log kept in progress records.
// Appends beyond the cap drop the oldest entries.
const maxProgressMessages = 10

// Progress is the semi-structured progress record attached to a task.
// The core counters are strongly typed; task-type-specific fields
// (percent, current_step, messages, warnings, ...) live in Extra and
// are flattened into the same JSON object when serialized.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Extra     map[string]any
}

// NewProgress returns a zeroed progress record for the given total.
func NewProgress(total int) Progress {
	return Progress{Total: total}
}

// SetExtra sets a task-type-specific auxiliary field.
func (p *Progress) SetExtra(key string, value any) {
	if p.Extra == nil {
		p.Extra = make(map[string]any)
	}
	p.Extra[key] = value
}

// GetExtra reads an auxiliary field.
func (p *Progress) GetExtra(key string) (any, bool) {
	v, ok := p.Extra[key]
	return v, ok
}

// AppendMessage appends to the bounded, ordered messages log, trimming
// the oldest entries once the cap is reached.
func (p *Progress) AppendMessage(msg string) {
	messages := p.Messages()
	messages = append(messages, msg)
	if len(messages) > maxProgressMessages {
		messages = messages[len(messages)-maxProgressMessages:]
	}
	p.SetExtra("messages", messages)
}

// Messages returns the current messages log, if any.
func (p *Progress) Messages() []string {
	raw, ok := p.Extra["messages"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AddWarning appends to the warnings list surfaced in the final result.
func (p *Progress) AddWarning(warning string) {
	var warnings []string
	if raw, ok := p.Extra["warnings"]; ok {
		switch v := raw.(type) {
		case []string:
			warnings = v
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					warnings = append(warnings, s)
				}
			}
		}
	}
	warnings = append(warnings, warning)
	p.SetExtra("warnings", warnings)
}

// Warnings returns the warnings list, if any.
func (p *Progress) Warnings() []string {
	raw, ok := p.Extra["warnings"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON flattens the core counters and the extra fields into a
// single JSON object.
func (p Progress) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		merged[k] = v
	}
	merged["total"] = p.Total
	merged["completed"] = p.Completed
	merged["failed"] = p.Failed
	return json.Marshal(merged)
}

// UnmarshalJSON splits the core counters back out of the flat object.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Total = intField(raw, "total")
	p.Completed = intField(raw, "completed")
	p.Failed = intField(raw, "failed")
	delete(raw, "total")
	delete(raw, "completed")
	delete(raw, "failed")
	if len(raw) > 0 {
		p.Extra = raw
	} else {
		p.Extra = nil
	}
	return nil
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Tracker serializes progress updates for one task. Page-completion
// callbacks from concurrent workers race to increment the counters, so
// every update is a locked read-modify-write against the latest
// authoritative record in the store rather than a locally cached delta.
// Trackers for different tasks are fully independent.
type Tracker struct {
	taskID uuid.UUID
	store  TaskStore
	mu     sync.Mutex
}

// NewTracker creates a progress tracker bound to one task.
func NewTracker(store TaskStore, taskID uuid.UUID) *Tracker {
	return &Tracker{taskID: taskID, store: store}
}

// Init resets the task's progress to {total, 0, 0}.
func (t *Tracker) Init(ctx context.Context, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.SetTaskProgress(ctx, t.taskID, NewProgress(total))
}

// Update applies fn to the latest persisted progress record and commits
// the result, all under the tracker's lock.
func (t *Tracker) Update(ctx context.Context, fn func(p *Progress)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress, err := t.store.GetTaskProgress(ctx, t.taskID)
	if err != nil {
		return fmt.Errorf("failed to read task progress: %w", err)
	}
	fn(&progress)
	if err := t.store.SetTaskProgress(ctx, t.taskID, progress); err != nil {
		return fmt.Errorf("failed to write task progress: %w", err)
	}
	return nil
}

// RecordResult increments the completed or failed counter for one
// settled unit of work. Counters never exceed total: once
// completed+failed reaches total, further increments are dropped.
func (t *Tracker) RecordResult(ctx context.Context, failed bool) error {
	return t.Update(ctx, func(p *Progress) {
		if p.Completed+p.Failed >= p.Total {
			return
		}
		if failed {
			p.Failed++
		} else {
			p.Completed++
		}
	})
}

// Get reads the current progress record.
func (t *Tracker) Get(ctx context.Context) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.GetTaskProgress(ctx, t.taskID)
}
