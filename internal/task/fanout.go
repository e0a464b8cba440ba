package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PageWorkFn is one unit of work for one page. It receives only the page
// ID and deck position, never a live domain object: workers look up
// entities fresh by ID inside their own scope, so no mutable state is
// shared across goroutines. Errors and panics are contained per page.
type PageWorkFn func(ctx context.Context, pageID uuid.UUID, index int) (any, error)

// PageResult is the settled outcome for one page.
type PageResult struct {
	PageID uuid.UUID
	Index  int
	Value  any
	Err    error
}

// FanOut submits one unit of work per page to a bounded worker pool and
// returns a channel that yields results in completion order, not
// submission order. The channel is closed once every page has settled.
//
// A single page's failure never cancels sibling in-flight work; callers
// aggregate failures after the batch settles and decide fail-fast
// behavior there. Panics inside a unit of work are converted to that
// page's error result.
func FanOut(ctx context.Context, pageIDs []uuid.UUID, maxWorkers int, fn PageWorkFn) <-chan PageResult {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make(chan PageResult, len(pageIDs))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, pageID := range pageIDs {
		wg.Add(1)
		go func(index int, id uuid.UUID) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- PageResult{PageID: id, Index: index, Err: ctx.Err()}
				return
			}

			results <- runPageWork(ctx, id, index, fn)
		}(i+1, pageID)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// runPageWork executes one unit of work, converting panics to errors so
// they never escape and kill sibling workers or the pool.
func runPageWork(ctx context.Context, pageID uuid.UUID, index int, fn PageWorkFn) (result PageResult) {
	result = PageResult{PageID: pageID, Index: index}

	defer func() {
		if p := recover(); p != nil {
			result.Value = nil
			result.Err = &PageError{
				PageID: pageID,
				Index:  index,
				Err:    fmt.Errorf("panic in page worker: %v", p),
			}
		}
	}()

	value, err := fn(ctx, pageID, index)
	if err != nil {
		result.Err = &PageError{PageID: pageID, Index: index, Err: err}
		return result
	}
	result.Value = value
	return result
}
