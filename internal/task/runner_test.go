package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedTask is a controllable Task for runner tests.
type scriptedTask struct {
	id           uuid.UUID
	projectID    uuid.UUID
	taskType     string
	executeFn    func(ctx context.Context) error
	preflightFn  func(ctx context.Context) error
	executeCount atomic.Int32
}

func newScriptedTask(executeFn func(ctx context.Context) error) *scriptedTask {
	return &scriptedTask{
		id:        uuid.New(),
		projectID: uuid.New(),
		taskType:  "scripted",
		executeFn: executeFn,
	}
}

func (t *scriptedTask) ID() uuid.UUID        { return t.id }
func (t *scriptedTask) ProjectID() uuid.UUID { return t.projectID }
func (t *scriptedTask) Type() string         { return t.taskType }

func (t *scriptedTask) Execute(ctx context.Context) error {
	t.executeCount.Add(1)
	if t.executeFn != nil {
		return t.executeFn(ctx)
	}
	return nil
}

// preflightTask adds a Preflight hook to scriptedTask.
type preflightTask struct {
	*scriptedTask
}

func (t *preflightTask) Preflight(ctx context.Context) error {
	if t.preflightFn != nil {
		return t.preflightFn(ctx)
	}
	return nil
}

func awaitSettled(t *testing.T, runner *Runner, taskID uuid.UUID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, runner.AwaitCompletion(ctx, taskID.String()))
}

func TestRunnerLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("successful task reaches COMPLETED", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, RunnerConfig{WorkerCount: 2, QueueSize: 10}, testLogger())
		runner.Start()
		defer runner.Stop()

		task := newScriptedTask(nil)
		require.NoError(t, runner.Submit(context.Background(), task))
		awaitSettled(t, runner, task.ID())

		record, err := store.GetTask(context.Background(), task.ID())
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, record.Status)
		assert.Empty(t, record.ErrorMessage)
		assert.NotNil(t, record.CompletedAt)
		assert.Equal(t, int32(1), task.executeCount.Load())
		assert.Equal(t, []Status{StatusPending, StatusProcessing, StatusCompleted}, store.history(task.ID()))
	})

	t.Run("failing task reaches FAILED with the error message", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 10}, testLogger())
		runner.Start()
		defer runner.Stop()

		task := newScriptedTask(func(context.Context) error {
			return errors.New("generation exploded")
		})
		require.NoError(t, runner.Submit(context.Background(), task))
		awaitSettled(t, runner, task.ID())

		record, err := store.GetTask(context.Background(), task.ID())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, record.Status)
		assert.Equal(t, "generation exploded", record.ErrorMessage)
		assert.NotNil(t, record.CompletedAt)
	})

	t.Run("panicking task is contained and reaches FAILED", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 10}, testLogger())
		runner.Start()
		defer runner.Stop()

		task := newScriptedTask(func(context.Context) error {
			panic("unexpected")
		})
		require.NoError(t, runner.Submit(context.Background(), task))
		awaitSettled(t, runner, task.ID())

		record, err := store.GetTask(context.Background(), task.ID())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, record.Status)
		assert.Contains(t, record.ErrorMessage, "task panicked")
	})

	t.Run("preflight failure skips PROCESSING entirely", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 10}, testLogger())
		runner.Start()
		defer runner.Stop()

		task := &preflightTask{scriptedTask: newScriptedTask(nil)}
		task.preflightFn = func(context.Context) error {
			return ErrPageCountMismatch
		}
		require.NoError(t, runner.Submit(context.Background(), task))
		awaitSettled(t, runner, task.ID())

		record, err := store.GetTask(context.Background(), task.ID())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, record.Status)
		assert.Contains(t, record.ErrorMessage, "page count")

		// The task never executed and never entered PROCESSING.
		assert.Equal(t, int32(0), task.executeCount.Load())
		assert.Equal(t, []Status{StatusPending, StatusFailed}, store.history(task.ID()))
		assert.Equal(t, Progress{}, store.progress(task.ID()))
	})
}

func TestRunnerSubmit(t *testing.T) {
	t.Parallel()

	t.Run("queue full returns an error and releases the handle", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		// No workers started: the queue fills up and stays full.
		runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 1}, testLogger())

		first := newScriptedTask(nil)
		require.NoError(t, runner.Submit(context.Background(), first))

		second := newScriptedTask(nil)
		err := runner.Submit(context.Background(), second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queue is full")
		assert.False(t, runner.IsActive(second.ID().String()))
		assert.True(t, runner.IsActive(first.ID().String()))
	})

	t.Run("store failure rejects the submission", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		store.failCreate = errors.New("database down")
		runner := NewRunner(store, DefaultRunnerConfig(), testLogger())

		err := runner.Submit(context.Background(), newScriptedTask(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task")
	})

	t.Run("record carries the task identity", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, DefaultRunnerConfig(), testLogger())

		task := newScriptedTask(nil)
		require.NoError(t, runner.Submit(context.Background(), task))

		record, err := store.GetTask(context.Background(), task.ID())
		require.NoError(t, err)
		assert.Equal(t, task.ID(), record.ID)
		assert.Equal(t, task.ProjectID(), record.ProjectID)
		assert.Equal(t, "scripted", record.Type)
		assert.Equal(t, StatusPending, record.Status)
	})
}

func TestRunnerAwaitCompletion(t *testing.T) {
	t.Parallel()

	t.Run("unknown task returns immediately", func(t *testing.T) {
		t.Parallel()

		runner := NewRunner(newMemTaskStore(), DefaultRunnerConfig(), testLogger())
		assert.NoError(t, runner.AwaitCompletion(context.Background(), uuid.NewString()))
	})

	t.Run("context cancellation unblocks the wait", func(t *testing.T) {
		t.Parallel()

		store := newMemTaskStore()
		runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 10}, testLogger())
		// Not started: the task stays queued and active.

		task := newScriptedTask(nil)
		require.NoError(t, runner.Submit(context.Background(), task))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := runner.AwaitCompletion(ctx, task.ID().String())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRunnerErrorHandler(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	runner := NewRunner(store, RunnerConfig{WorkerCount: 1, QueueSize: 10}, testLogger())

	handled := make(chan error, 1)
	runner.SetErrorHandler(func(_ Task, err error) {
		handled <- err
	})
	runner.Start()
	defer runner.Stop()

	boom := errors.New("boom")
	task := newScriptedTask(func(context.Context) error { return boom })
	require.NoError(t, runner.Submit(context.Background(), task))

	select {
	case err := <-handled:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("error handler was not invoked")
	}
}
