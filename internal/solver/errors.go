package solver

import (
	"fmt"
	"strings"
)

// CycleError is returned by Resolve when the dependency relation contains
// a cycle. Keys lists the members of the cycle in traversal order. The
// submission is rejected before any task executes.
type CycleError struct {
	Keys []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Keys, " -> "))
}

// InternalError wraps an unexpected failure (a recovered panic) inside a
// task's GetStatus or Process. Errors returned deliberately by a task are
// never wrapped in this type.
type InternalError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in task %s: %v", e.Key, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *InternalError) Unwrap() error { return e.Err }

// CascadeError marks a task that was cancelled because a dependency
// failed. It wraps the original failing task's error so callers can
// distinguish root cause from cascade.
type CascadeError struct {
	// Key is the cancelled task.
	Key string
	// FailedDependency is the task whose failure triggered the cascade.
	FailedDependency string
	// Err is the failing dependency's error.
	Err error
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	return fmt.Sprintf("task %s cancelled: dependency %s failed: %v", e.Key, e.FailedDependency, e.Err)
}

// Unwrap exposes the root-cause error.
func (e *CascadeError) Unwrap() error { return e.Err }

// AbortError marks a task that was cancelled by a batch cancellation or
// an expired deadline before or during execution.
type AbortError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("task %s aborted: %s", e.Key, e.Reason)
}
