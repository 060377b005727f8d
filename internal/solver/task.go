package solver

import (
	"context"
	"strings"
)

// ActionState describes how satisfied a task's target is at a point in time.
type ActionState string

const (
	// StateNotReady means the target exists but is out of date and must be processed.
	StateNotReady ActionState = "not-ready"
	// StateReady means the target is already satisfied; processing can be skipped.
	StateReady ActionState = "ready"
	// StateUnknown means the status could not be determined.
	StateUnknown ActionState = "unknown"
	// StateFailed means the target is in a broken state.
	StateFailed ActionState = "failed"
)

// Outputs is the opaque key/value payload a task produces from a status
// check or a processing run.
type Outputs map[string]any

// Results is the read-only dependency-result sub-map handed to a task's
// GetStatus and Process calls. It contains only that task's own declared
// dependencies and status dependencies, never the whole store.
type Results map[string]*GraphResult

// Task is the unit of work the solver schedules. Concrete variants
// (build, deploy, run, test) are constructed by factories elsewhere; the
// solver depends only on this capability set.
//
// Keys follow the form "<type>.<name>". The prefix before the first dot
// selects the per-type concurrency bucket.
type Task interface {
	// Key returns the stable identifier used for deduplication and caching.
	Key() string

	// Dependencies returns the tasks that must process successfully before
	// this task may process.
	Dependencies() []Task

	// StatusDependencies returns the tasks whose status must be resolved
	// (not necessarily processed) before this task's own status check runs.
	StatusDependencies() []Task

	// Force reports whether the status short-circuit should be skipped.
	Force() bool

	// InputVersion returns the content fingerprint of the task's inputs.
	InputVersion() string

	// GetStatus checks whether the task's target is already satisfied.
	GetStatus(ctx context.Context, deps Results) (ActionState, Outputs, error)

	// Process performs the actual work and returns the resulting state.
	Process(ctx context.Context, deps Results) (ActionState, Outputs, error)
}

// taskType extracts the per-type concurrency bucket from a task key.
// Keys without a dot fall into the empty bucket.
func taskType(key string) string {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return ""
}
