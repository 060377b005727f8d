package solver

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeTask is a configurable Task for exercising the scheduler.
type fakeTask struct {
	key        string
	deps       []Task
	statusDeps []Task
	force      bool
	version    string

	status  func(ctx context.Context, deps Results) (ActionState, Outputs, error)
	process func(ctx context.Context, deps Results) (ActionState, Outputs, error)

	statusCalls  atomic.Int32
	processCalls atomic.Int32
}

func newTask(key string) *fakeTask {
	return &fakeTask{key: key, version: "v-" + key}
}

func (t *fakeTask) dependsOn(deps ...Task) *fakeTask {
	t.deps = append(t.deps, deps...)
	return t
}

func (t *fakeTask) statusDependsOn(deps ...Task) *fakeTask {
	t.statusDeps = append(t.statusDeps, deps...)
	return t
}

func (t *fakeTask) forced() *fakeTask {
	t.force = true
	return t
}

func (t *fakeTask) withStatus(state ActionState) *fakeTask {
	t.status = func(context.Context, Results) (ActionState, Outputs, error) {
		return state, Outputs{"fromStatus": true}, nil
	}
	return t
}

func (t *fakeTask) withProcessErr(err error) *fakeTask {
	t.process = func(context.Context, Results) (ActionState, Outputs, error) {
		return StateFailed, nil, err
	}
	return t
}

func (t *fakeTask) Key() string                { return t.key }
func (t *fakeTask) Dependencies() []Task       { return t.deps }
func (t *fakeTask) StatusDependencies() []Task { return t.statusDeps }
func (t *fakeTask) Force() bool                { return t.force }
func (t *fakeTask) InputVersion() string       { return t.version }

func (t *fakeTask) GetStatus(ctx context.Context, deps Results) (ActionState, Outputs, error) {
	t.statusCalls.Add(1)
	if t.status == nil {
		return StateUnknown, nil, nil
	}
	return t.status(ctx, deps)
}

func (t *fakeTask) Process(ctx context.Context, deps Results) (ActionState, Outputs, error) {
	t.processCalls.Add(1)
	if t.process == nil {
		return StateReady, Outputs{"ran": true}, nil
	}
	return t.process(ctx, deps)
}

// recorder captures process invocation order across goroutines.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, key)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// recordProcess makes a task append its key to the recorder when processed.
func (t *fakeTask) recordProcess(r *recorder) *fakeTask {
	t.process = func(context.Context, Results) (ActionState, Outputs, error) {
		r.add(t.key)
		return StateReady, Outputs{"ran": true}, nil
	}
	return t
}
