package solver

import (
	"context"
	"fmt"
	"sync/atomic"
)

// SubmitOptions controls one submission batch.
type SubmitOptions struct {
	// ThrowOnError makes Submit return the first terminal error of the
	// batch (earliest by completion time) alongside the full result map.
	// When false, failures are only reported through the results.
	ThrowOnError bool
}

// Start resolves the closure of the given root tasks and submits it as a
// new batch, returning the batch identifier without waiting for
// completion. A cycle in the dependency relation rejects the whole
// submission before any task executes.
func (s *Solver) Start(tasks []Task) (string, error) {
	graph, err := Resolve(tasks)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("b-%d", atomic.AddInt64(&s.batchSeq, 1))
	s.events <- submitEvent{batchID: id, graph: graph}
	return id, nil
}

// WaitUntilSettled blocks until every task in the batch's closure has
// reached a terminal state, or the context is done. It returns the
// batch's first terminal error, if any.
func (s *Solver) WaitUntilSettled(ctx context.Context, batchID string) error {
	ch := make(chan batchOutcome, 1)
	s.events <- waitEvent{batchID: batchID, ch: ch}
	select {
	case out := <-ch:
		return out.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts a batch. Tasks referenced by another active batch keep
// running; everything owned solely by this batch is cancelled, in-flight
// work through its context and pending work without ever being invoked.
func (s *Solver) Cancel(batchID, reason string) {
	s.events <- cancelEvent{batchID: batchID, reason: reason}
}

// Submit runs the given root tasks plus their dependency closure and
// blocks until the batch settles. The returned map covers the entire
// closure, including failed and cancelled entries. A context deadline
// behaves like an externally triggered batch cancellation: execution is
// aborted but Submit still returns the complete result map once the
// batch settles.
func (s *Solver) Submit(ctx context.Context, tasks []Task, opts SubmitOptions) (map[string]*GraphResult, error) {
	id, err := s.Start(tasks)
	if err != nil {
		return nil, err
	}

	ch := make(chan batchOutcome, 1)
	s.events <- waitEvent{batchID: id, ch: ch}

	var out batchOutcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		s.Cancel(id, ctx.Err().Error())
		// Settlement is still guaranteed: sole-owned tasks are aborted and
		// shared tasks finish under their surviving batches.
		out = <-ch
	}

	if opts.ThrowOnError && out.err != nil {
		return out.results, out.err
	}
	return out.results, nil
}
