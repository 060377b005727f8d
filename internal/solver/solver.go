// Package solver turns a set of requested root tasks into a fully
// ordered, concurrency-bounded, cache-aware, failure-propagating
// execution of the whole dependency closure.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/tendgo/internal/ctxlog"
)

// Options configures a Solver instance.
type Options struct {
	// MaxParallel bounds the number of tasks simultaneously inside
	// GetStatus or Process. Defaults to 10.
	MaxParallel int
	// PerTypeLimits optionally bounds concurrency per task type (the key
	// prefix before the first dot). Types without an entry are bounded
	// only by MaxParallel.
	PerTypeLimits map[string]int
}

// nodeState is the scheduler-internal lifecycle of one task key.
type nodeState int

const (
	statePending nodeState = iota
	stateStatusChecking
	stateProcessing
	stateDone
	stateFailed
	stateCancelled
)

// terminal reports whether no further transition is possible.
func (s nodeState) terminal() bool { return s >= stateDone }

func (s nodeState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateStatusChecking:
		return "status-checking"
	case stateProcessing:
		return "processing"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	case stateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// StateCancelled is the result-only state recorded for tasks that were
// cancelled by a cascade, a batch cancellation or a deadline. Tasks never
// report it themselves.
const StateCancelled ActionState = "cancelled"

// taskNode is the scheduler's bookkeeping record for one task key.
// All fields are owned by the event loop goroutine.
type taskNode struct {
	key  string
	task Task

	state    nodeState
	queued   bool
	launched bool
	// seq is the monotonic insertion sequence assigned when the node
	// becomes ready; it fixes the deterministic tie-break between tasks
	// ready in the same wave.
	seq int64

	deps       []string
	statusDeps []string
	// depDependents / statusDependents are the reverse edges, used to
	// notify waiters directly instead of polling.
	depDependents    []string
	statusDependents []string

	// refs counts the active batches referencing this key. A node is only
	// cancelled by batch cancellation once the last reference drops.
	refs map[string]struct{}
	// batchID is the batch whose submission created the node.
	batchID string
	// cancel aborts the in-flight body, if any.
	cancel context.CancelFunc
}

// batch tracks one group of root tasks submitted together.
type batch struct {
	id        string
	roots     []string
	keys      []string
	keySet    map[string]struct{}
	cancelled bool
	settled   bool
	// firstErr is the earliest terminal error by completion time.
	firstErr error
	waiters  []chan batchOutcome
}

// batchOutcome is delivered to waiters once every key in the batch's
// closure has reached a terminal state.
type batchOutcome struct {
	results map[string]*GraphResult
	err     error
}

// Events handled by the scheduler loop.
type (
	submitEvent struct {
		batchID string
		graph   *TaskGraph
	}
	processingEvent struct{ key string }
	doneEvent       struct {
		key    string
		result *GraphResult
	}
	cancelEvent struct {
		batchID string
		reason  string
	}
	waitEvent struct {
		batchID string
		ch      chan batchOutcome
	}
)

// Solver is the scheduling engine for one run. The result store, the
// per-key in-flight state and the concurrency counters are owned
// exclusively by its single event-loop goroutine; task bodies run in
// their own goroutines and communicate back through events only.
type Solver struct {
	baseCtx context.Context
	opts    Options
	store   *ResultStore
	events  chan any
	quit    chan struct{}
	stopped chan struct{}
	// batchSeq issues batch identifiers; incremented atomically by Start.
	batchSeq int64

	// Everything below is touched only from the event loop.
	nodes         map[string]*taskNode
	queue         []*taskNode
	batches       map[string]*batch
	running       int
	runningByType map[string]int
	seq           int64
}

// New creates a Solver scoped to one run and starts its event loop. The
// context supplies the logger and the base lifetime for task bodies.
func New(ctx context.Context, opts Options) *Solver {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 10
	}
	s := &Solver{
		baseCtx:       ctx,
		opts:          opts,
		store:         NewResultStore(),
		events:        make(chan any, 128),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
		nodes:         make(map[string]*taskNode),
		batches:       make(map[string]*batch),
		runningByType: make(map[string]int),
	}
	go s.loop()
	return s
}

// Close stops the event loop. It must only be called once all
// submissions have settled.
func (s *Solver) Close() {
	close(s.quit)
	<-s.stopped
}

// Results returns a snapshot of every result recorded so far.
func (s *Solver) Results() map[string]*GraphResult {
	return s.store.GetAll()
}

// loop is the single bookkeeping path. State transitions, readiness
// evaluation and result-store writes all happen here, so no two
// bookkeeping steps for the run interleave.
func (s *Solver) loop() {
	defer close(s.stopped)
	logger := ctxlog.FromContext(s.baseCtx)
	for {
		select {
		case <-s.quit:
			logger.Debug("Solver loop stopping.")
			return
		case ev := <-s.events:
			switch ev := ev.(type) {
			case submitEvent:
				s.handleSubmit(ev)
			case processingEvent:
				if n := s.nodes[ev.key]; n != nil && n.state == stateStatusChecking {
					n.state = stateProcessing
				}
			case doneEvent:
				s.handleDone(ev)
			case cancelEvent:
				s.handleCancel(ev)
			case waitEvent:
				s.handleWait(ev)
			}
		}
	}
}

// handleSubmit integrates a resolved closure into the node table,
// attaching to any in-flight or completed nodes that share a key.
func (s *Solver) handleSubmit(ev submitEvent) {
	logger := ctxlog.FromContext(s.baseCtx)
	b := &batch{
		id:     ev.batchID,
		roots:  ev.graph.Roots(),
		keys:   ev.graph.Order(),
		keySet: make(map[string]struct{}, len(ev.graph.Order())),
	}
	for _, key := range b.keys {
		b.keySet[key] = struct{}{}
	}
	s.batches[ev.batchID] = b

	for _, key := range b.keys {
		n, exists := s.nodes[key]
		if !exists {
			n = &taskNode{
				key:        key,
				task:       ev.graph.Task(key),
				deps:       ev.graph.Dependencies(key),
				statusDeps: ev.graph.StatusDependencies(key),
				refs:       make(map[string]struct{}),
				batchID:    ev.batchID,
			}
			s.nodes[key] = n
		}
		n.refs[ev.batchID] = struct{}{}
	}
	// Reverse edges, including ones a later batch adds to existing nodes.
	for _, key := range b.keys {
		n := s.nodes[key]
		for _, depKey := range n.deps {
			dep := s.nodes[depKey]
			dep.depDependents = appendUnique(dep.depDependents, key)
		}
		for _, depKey := range n.statusDeps {
			dep := s.nodes[depKey]
			dep.statusDependents = appendUnique(dep.statusDependents, key)
		}
	}

	logger.Debug("Batch submitted.", "batchID", ev.batchID, "closure", len(b.keys))
	for _, key := range b.keys {
		s.evaluate(s.nodes[key])
	}
	s.admit()
	s.checkSettled()
}

// evaluate checks a pending node's readiness: every dependency must be
// done and every status dependency must be terminal. A failed or
// cancelled dependency cancels the node immediately (cascade).
func (s *Solver) evaluate(n *taskNode) {
	if n == nil || n.state != statePending || n.queued {
		return
	}
	for _, depKey := range n.deps {
		dep := s.nodes[depKey]
		switch dep.state {
		case stateDone:
		case stateFailed, stateCancelled:
			s.finalize(n, s.cascadeResult(n, depKey))
			return
		default:
			return
		}
	}
	for _, depKey := range n.statusDeps {
		if !s.nodes[depKey].state.terminal() {
			return
		}
	}
	s.seq++
	n.seq = s.seq
	n.queued = true
	s.queue = append(s.queue, n)
}

// admit launches queued nodes while under the global and per-type
// bounds. The queue is FIFO by insertion sequence; a node blocked by its
// type limit keeps its place but does not block later admissible nodes.
func (s *Solver) admit() {
	i := 0
	for i < len(s.queue) && s.running < s.opts.MaxParallel {
		n := s.queue[i]
		tt := taskType(n.key)
		if limit, ok := s.opts.PerTypeLimits[tt]; ok && s.runningByType[tt] >= limit {
			i++
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		s.launch(n)
	}
}

// launch hands a ready node to its own goroutine. The node occupies one
// concurrency slot from here until its doneEvent arrives.
func (s *Solver) launch(n *taskNode) {
	n.queued = false
	n.launched = true
	if n.task.Force() {
		n.state = stateProcessing
	} else {
		n.state = stateStatusChecking
	}
	s.running++
	s.runningByType[taskType(n.key)]++

	depKeys := make([]string, 0, len(n.deps)+len(n.statusDeps))
	depKeys = append(depKeys, n.deps...)
	depKeys = append(depKeys, n.statusDeps...)
	deps := s.store.subMap(depKeys)

	ctx, cancel := context.WithCancel(s.baseCtx)
	n.cancel = cancel
	go s.runBody(ctx, n, deps)
}

// runBody executes a task's status check and processing outside the
// event loop. The context is checked before and after every suspension
// point so cancellations are observed promptly even mid-flight.
func (s *Solver) runBody(ctx context.Context, n *taskNode, deps Results) {
	logger := ctxlog.FromContext(ctx).With("task", n.key)
	task := n.task
	res := &GraphResult{
		Key:          n.key,
		InputVersion: task.InputVersion(),
		BatchID:      n.batchID,
		StartedAt:    time.Now(),
		Dependencies: deps,
	}
	finish := func() {
		res.CompletedAt = time.Now()
		s.events <- doneEvent{key: n.key, result: res}
	}

	if !task.Force() {
		logger.Debug("Checking task status.")
		state, outputs, err := s.call(ctx, n, deps, task.GetStatus)
		switch {
		case err != nil && ctx.Err() != nil:
			res.State = StateCancelled
			res.Error = &AbortError{Key: n.key, Reason: "cancelled during status check"}
			finish()
			return
		case err != nil:
			logger.Debug("Status check failed.", "error", err)
			res.State = StateFailed
			res.Error = err
			finish()
			return
		case state == StateReady:
			logger.Debug("Task already satisfied, skipping processing.")
			res.State = StateReady
			res.Outputs = outputs
			finish()
			return
		}
	}

	if ctx.Err() != nil {
		res.State = StateCancelled
		res.Error = &AbortError{Key: n.key, Reason: "cancelled before processing"}
		finish()
		return
	}

	s.events <- processingEvent{key: n.key}
	logger.Debug("Processing task.", "force", task.Force())
	state, outputs, err := s.call(ctx, n, deps, task.Process)
	res.Processed = true
	switch {
	case err != nil && ctx.Err() != nil:
		res.State = StateCancelled
		res.Error = &AbortError{Key: n.key, Reason: "cancelled during processing"}
	case err != nil:
		logger.Debug("Processing failed.", "error", err)
		res.State = StateFailed
		res.Error = err
	default:
		res.State = state
		res.Outputs = outputs
	}
	finish()
}

// call invokes a task body function, converting panics into internal
// errors so a programming fault in one task never takes down the run.
func (s *Solver) call(ctx context.Context, n *taskNode, deps Results,
	f func(context.Context, Results) (ActionState, Outputs, error)) (state ActionState, outputs Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{Key: n.key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return f(ctx, deps)
}

// handleDone finalizes a completed body and releases its slot.
func (s *Solver) handleDone(ev doneEvent) {
	n := s.nodes[ev.key]
	if n == nil {
		return
	}
	s.running--
	s.runningByType[taskType(ev.key)]--
	if !n.state.terminal() {
		s.finalize(n, ev.result)
	}
	s.admit()
	s.checkSettled()
}

// finalize records a terminal result exactly once and notifies waiting
// dependents directly. A failed node cascades to its dependency
// dependents through their readiness evaluation; status-only dependents
// simply become eligible for their own status check.
func (s *Solver) finalize(n *taskNode, res *GraphResult) {
	logger := ctxlog.FromContext(s.baseCtx)
	if err := s.store.Put(n.key, res); err != nil {
		logger.Error("Dropping duplicate result.", "task", n.key, "error", err)
		return
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	switch {
	case res.Error == nil:
		n.state = stateDone
	case res.State == StateCancelled:
		n.state = stateCancelled
	default:
		n.state = stateFailed
	}
	logger.Debug("Task finalized.", "task", n.key, "state", n.state.String(), "processed", res.Processed)

	if res.Error != nil {
		for _, b := range s.batches {
			if _, ok := b.keySet[n.key]; ok && !b.settled && b.firstErr == nil {
				b.firstErr = res.Error
			}
		}
	}

	for _, depKey := range n.depDependents {
		s.evaluate(s.nodes[depKey])
	}
	for _, depKey := range n.statusDependents {
		s.evaluate(s.nodes[depKey])
	}
}

// cascadeResult builds the cancellation record for a dependent of a
// failed task. Nested cascades keep wrapping, so unwrapping always
// reaches the original failing task's error.
func (s *Solver) cascadeResult(n *taskNode, failedDep string) *GraphResult {
	var depErr error
	if depRes := s.store.Get(failedDep); depRes != nil {
		depErr = depRes.Error
	}
	now := time.Now()
	return &GraphResult{
		Key:          n.key,
		State:        StateCancelled,
		Error:        &CascadeError{Key: n.key, FailedDependency: failedDep, Err: depErr},
		InputVersion: n.task.InputVersion(),
		BatchID:      n.batchID,
		StartedAt:    now,
		CompletedAt:  now,
	}
}

// abortResult builds the cancellation record for a node that was never
// invoked because its batch was cancelled.
func (s *Solver) abortResult(n *taskNode, reason string) *GraphResult {
	now := time.Now()
	return &GraphResult{
		Key:          n.key,
		State:        StateCancelled,
		Error:        &AbortError{Key: n.key, Reason: reason},
		InputVersion: n.task.InputVersion(),
		BatchID:      n.batchID,
		StartedAt:    now,
		CompletedAt:  now,
	}
}

// handleCancel drops one batch's references. Nodes still referenced by
// another active batch are left alone; nodes owned solely by this batch
// are aborted (pending ones immediately, in-flight ones via their
// context). Iteration is dependents-first so sole-owned nodes are
// aborted directly rather than through a cascade.
func (s *Solver) handleCancel(ev cancelEvent) {
	b := s.batches[ev.batchID]
	if b == nil || b.cancelled || b.settled {
		return
	}
	b.cancelled = true
	if b.firstErr == nil {
		b.firstErr = fmt.Errorf("batch %s cancelled: %s", ev.batchID, ev.reason)
	}
	for i := len(b.keys) - 1; i >= 0; i-- {
		n := s.nodes[b.keys[i]]
		delete(n.refs, ev.batchID)
		if len(n.refs) > 0 || n.state.terminal() {
			continue
		}
		switch n.state {
		case statePending:
			if n.queued {
				s.dequeue(n)
			}
			s.finalize(n, s.abortResult(n, ev.reason))
		case stateStatusChecking, stateProcessing:
			if n.cancel != nil {
				n.cancel()
			}
		}
	}
	s.checkSettled()
}

// dequeue removes a node from the pending queue.
func (s *Solver) dequeue(n *taskNode) {
	for i, queued := range s.queue {
		if queued == n {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	n.queued = false
}

// handleWait registers a settlement waiter, replying immediately if the
// batch has already settled.
func (s *Solver) handleWait(ev waitEvent) {
	b := s.batches[ev.batchID]
	if b == nil {
		ev.ch <- batchOutcome{err: fmt.Errorf("unknown batch %q", ev.batchID)}
		return
	}
	if b.settled {
		ev.ch <- s.outcome(b)
		return
	}
	b.waiters = append(b.waiters, ev.ch)
}

// checkSettled resolves waiters for every batch whose closure has fully
// terminated.
func (s *Solver) checkSettled() {
	for _, b := range s.batches {
		if b.settled {
			continue
		}
		settled := true
		for _, key := range b.keys {
			if !s.nodes[key].state.terminal() {
				settled = false
				break
			}
		}
		if !settled {
			continue
		}
		b.settled = true
		out := s.outcome(b)
		for _, w := range b.waiters {
			w <- out
		}
		b.waiters = nil
	}
}

// outcome assembles the per-batch result map, restricted to the batch's
// own closure.
func (s *Solver) outcome(b *batch) batchOutcome {
	results := make(map[string]*GraphResult, len(b.keys))
	for _, key := range b.keys {
		if r := s.store.Get(key); r != nil {
			results[key] = r
		}
	}
	err := b.firstErr
	if err == nil {
		// Failures recorded before this batch attached never passed
		// through finalize under it; pick them up from the results.
		for _, key := range b.keys {
			if r := results[key]; r != nil && r.Error != nil {
				err = r.Error
				break
			}
		}
	}
	return batchOutcome{results: results, err: err}
}
