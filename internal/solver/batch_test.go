package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingTask returns a task whose processing blocks until release is
// closed, plus a channel closed once processing has started.
func blockingTask(key string) (*fakeTask, chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	task := newTask(key)
	task.process = func(ctx context.Context, _ Results) (ActionState, Outputs, error) {
		close(started)
		select {
		case <-release:
			return StateReady, Outputs{"ran": true}, nil
		case <-ctx.Done():
			return StateFailed, nil, ctx.Err()
		}
	}
	return task, started, release
}

func TestSolverAtMostOnceAcrossBatches(t *testing.T) {
	shared, started, release := blockingTask("build.shared")
	duplicate := newTask("build.shared")
	rootA := newTask("deploy.a").dependsOn(shared)
	rootB := newTask("deploy.b").dependsOn(duplicate)

	s := newTestSolver(t, Options{})

	batchA, err := s.Start([]Task{rootA})
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("shared task never started")
	}

	// Second batch arrives while the shared key is mid-flight.
	batchB, err := s.Start([]Task{rootB})
	require.NoError(t, err)
	close(release)

	require.NoError(t, s.WaitUntilSettled(context.Background(), batchA))
	require.NoError(t, s.WaitUntilSettled(context.Background(), batchB))

	assert.Equal(t, int32(1), shared.processCalls.Load())
	assert.Equal(t, int32(0), duplicate.processCalls.Load())
	assert.Equal(t, int32(0), duplicate.statusCalls.Load())

	results := s.Results()
	require.Contains(t, results, "build.shared")
	assert.True(t, results["deploy.a"].Processed)
	assert.True(t, results["deploy.b"].Processed)
	// The second batch consumed the first batch's result for the shared key.
	assert.Equal(t, batchA, results["build.shared"].BatchID)
}

func TestSolverCancelBatch(t *testing.T) {
	blocker, started, release := blockingTask("build.slow")
	defer close(release)
	root := newTask("deploy.app").dependsOn(blocker)

	s := newTestSolver(t, Options{})
	batchID, err := s.Start([]Task{root})
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("blocker never started")
	}

	s.Cancel(batchID, "user interrupt")
	err = s.WaitUntilSettled(context.Background(), batchID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user interrupt")

	results := s.Results()
	require.Contains(t, results, "build.slow")
	require.Contains(t, results, "deploy.app")

	// The in-flight task was aborted through its context.
	var abortBlocker *AbortError
	require.ErrorAs(t, results["build.slow"].Error, &abortBlocker)
	assert.Equal(t, StateCancelled, results["build.slow"].State)

	// The pending dependent was aborted directly, never invoked.
	var abortRoot *AbortError
	require.ErrorAs(t, results["deploy.app"].Error, &abortRoot)
	assert.Equal(t, "user interrupt", abortRoot.Reason)
	assert.Equal(t, int32(0), root.statusCalls.Load())
	assert.Equal(t, int32(0), root.processCalls.Load())
}

func TestSolverCancelSparesSharedTasks(t *testing.T) {
	shared, started, release := blockingTask("build.shared")
	duplicate := newTask("build.shared")

	s := newTestSolver(t, Options{})
	batchA, err := s.Start([]Task{shared})
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("shared task never started")
	}

	batchB, err := s.Start([]Task{duplicate})
	require.NoError(t, err)

	// Cancelling the first batch must not abort work the second still needs.
	s.Cancel(batchA, "superseded")
	close(release)

	require.NoError(t, s.WaitUntilSettled(context.Background(), batchB))
	err = s.WaitUntilSettled(context.Background(), batchA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "superseded")

	res := s.Results()["build.shared"]
	require.NotNil(t, res)
	assert.NoError(t, res.Error)
	assert.True(t, res.Processed)
	assert.Equal(t, int32(1), shared.processCalls.Load())
}

func TestSolverSubmitDeadline(t *testing.T) {
	slow, started, release := blockingTask("run.slow")
	defer close(release)

	s := newTestSolver(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results, err := s.Submit(ctx, []Task{slow}, SubmitOptions{ThrowOnError: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")

	select {
	case <-started:
	default:
		t.Fatal("task should have started before the deadline")
	}

	// Submit still returns the complete result map after the abort.
	res := results["run.slow"]
	require.NotNil(t, res)
	assert.Equal(t, StateCancelled, res.State)
	var abort *AbortError
	require.ErrorAs(t, res.Error, &abort)
}

func TestSolverWaitUnknownBatch(t *testing.T) {
	s := newTestSolver(t, Options{})
	err := s.WaitUntilSettled(context.Background(), "b-999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown batch")
}

func TestSolverBatchJoiningFailedResultSeesError(t *testing.T) {
	errBoom := assert.AnError
	failing := newTask("build.bad").withProcessErr(errBoom)

	s := newTestSolver(t, Options{})
	_, err := s.Submit(context.Background(), []Task{failing}, SubmitOptions{ThrowOnError: true})
	require.ErrorIs(t, err, errBoom)

	// A later batch attaching to the already-failed key still reports the
	// failure in its own outcome.
	duplicate := newTask("build.bad")
	results, err := s.Submit(context.Background(), []Task{duplicate}, SubmitOptions{ThrowOnError: true})
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, results, "build.bad")
	assert.Equal(t, int32(0), duplicate.processCalls.Load())
}
