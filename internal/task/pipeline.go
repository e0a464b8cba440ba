package task

import (
	"context"
	"fmt"
	"log/slog"
)

// Stage is one named, sequential step within a larger task. A stage may
// internally fan out over pages; handoff between stages goes through
// durable Page/Project rows, never through in-memory structures shared
// across pool boundaries, so each stage is independently retryable.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// runStages executes stages in order, stopping at the first failure.
// The failed stage's name is attached to the returned error.
func runStages(ctx context.Context, logger *slog.Logger, stages []Stage) error {
	for _, stage := range stages {
		logger.Info("starting stage", "stage", stage.Name)
		if err := stage.Run(ctx); err != nil {
			logger.Error("stage failed", "stage", stage.Name, "error", err)
			return fmt.Errorf("stage %q: %w", stage.Name, err)
		}
		logger.Info("stage completed", "stage", stage.Name)
	}
	return nil
}
