package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// RunnerConfig holds configuration for the task runner.
type RunnerConfig struct {
	// WorkerCount determines how many top-level tasks run concurrently.
	// Per-page fan-out inside a task uses its own, separately sized pool.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Runner manages background task processing. It owns the task lifecycle:
// a submitted task moves PENDING -> PROCESSING -> {COMPLETED | FAILED},
// and the runner is the only component that writes terminal status.
// There is no cancellation API; a task reaches a terminal state only via
// natural completion or failure.
//
// Active tasks are tracked through explicit handles owned by the runner
// (Submit / IsActive / AwaitCompletion); no global registry leaks into
// workers.
type Runner struct {
	store      TaskStore
	taskChan   chan Task
	active     map[string]chan struct{}
	mu         sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a new Runner.
func NewRunner(store TaskStore, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      store,
		taskChan:   make(chan Task, config.QueueSize),
		active:     make(map[string]chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function.
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists a new pending task record and adds the task to the
// queue. Returns an error if the record cannot be saved or the queue
// is full.
func (r *Runner) Submit(ctx context.Context, task Task) error {
	record := NewRecord(task.ProjectID(), task.Type())
	record.ID = task.ID()

	if err := r.store.CreateTask(ctx, record); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.active[task.ID().String()] = done
	r.mu.Unlock()

	select {
	case r.taskChan <- task:
		return nil
	default:
		r.finish(task)
		return fmt.Errorf("task queue is full, try again later")
	}
}

// IsActive reports whether the task is queued or still running.
func (r *Runner) IsActive(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[taskID]
	return ok
}

// AwaitCompletion blocks until the task settles or the context is done.
// Unknown task IDs return immediately: the task has already settled or
// was never submitted.
func (r *Runner) AwaitCompletion(ctx context.Context, taskID string) error {
	r.mu.Lock()
	done, ok := r.active[taskID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start initializes the worker pool and begins processing tasks.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop gracefully shuts down the task runner, waiting for in-flight
// tasks to finish.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	close(r.taskChan)
}

// worker processes tasks from the queue.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.taskChan:
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(task, id)
		}
	}
}

// processTask handles the full lifecycle of a single task. This is the
// orchestrator boundary: it is the only place uncaught pipeline errors
// and panics are converted into a FAILED status.
func (r *Runner) processTask(task Task, workerID int) {
	defer r.finish(task)

	ctx := context.Background()
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	// Preflight validation failures go straight to FAILED; the task
	// never enters PROCESSING with partial work.
	if checker, ok := task.(PreflightChecker); ok {
		if err := checker.Preflight(ctx); err != nil {
			logger.Error("task preflight failed", "error", err)
			if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), StatusFailed, err.Error()); updateErr != nil {
				logger.Error("failed to update task status to failed", "error", updateErr)
			}
			r.errHandler(task, err)
			return
		}
	}

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), StatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")

	err := r.executeContained(ctx, task, logger)

	if err != nil {
		logger.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), StatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
		return
	}

	logger.Info("task completed successfully")
	if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), StatusCompleted, ""); updateErr != nil {
		logger.Error("failed to update task status to completed", "error", updateErr)
	}
}

// executeContained runs the task and converts panics into errors so a
// misbehaving pipeline can never take down a worker.
func (r *Runner) executeContained(ctx context.Context, task Task, logger *slog.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("task panicked", "panic", p)
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task.Execute(ctx)
}

// finish closes and removes the task's completion handle.
func (r *Runner) finish(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := task.ID().String()
	if done, ok := r.active[key]; ok {
		close(done)
		delete(r.active, key)
	}
}
