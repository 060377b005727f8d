package actions

import (
	"context"
	"fmt"

	"github.com/vk/tendgo/internal/project"
	"github.com/vk/tendgo/internal/solver"
)

// actionTask adapts one configured action to the solver's Task
// interface. All variants share this implementation; behavior differs
// only through the handlers registered for the action's kind.
type actionTask struct {
	action     *project.Action
	projectDir string
	version    string
	force      bool
	registry   *Registry

	deps       []solver.Task
	statusDeps []solver.Task
}

var _ solver.Task = (*actionTask)(nil)

// Key implements solver.Task.
func (t *actionTask) Key() string { return t.action.Addr() }

// Dependencies implements solver.Task.
func (t *actionTask) Dependencies() []solver.Task { return t.deps }

// StatusDependencies implements solver.Task.
func (t *actionTask) StatusDependencies() []solver.Task { return t.statusDeps }

// Force implements solver.Task.
func (t *actionTask) Force() bool { return t.force }

// InputVersion implements solver.Task.
func (t *actionTask) InputVersion() string { return t.version }

// GetStatus implements solver.Task. A kind without a status handler
// reports unknown, which makes the solver process unconditionally.
func (t *actionTask) GetStatus(ctx context.Context, deps solver.Results) (solver.ActionState, solver.Outputs, error) {
	fn := t.registry.Status(t.action.Kind)
	if fn == nil {
		return solver.StateUnknown, nil, nil
	}
	resp, err := fn(ctx, t.request(deps))
	if err != nil {
		return solver.StateFailed, nil, err
	}
	return resp.State, resp.Outputs, nil
}

// Process implements solver.Task.
func (t *actionTask) Process(ctx context.Context, deps solver.Results) (solver.ActionState, solver.Outputs, error) {
	fn := t.registry.Process(t.action.Kind)
	if fn == nil {
		return solver.StateFailed, nil, fmt.Errorf("no process handler for kind %q", t.action.Kind)
	}
	resp, err := fn(ctx, t.request(deps))
	if err != nil {
		return solver.StateFailed, nil, err
	}
	return resp.State, resp.Outputs, nil
}

func (t *actionTask) request(deps solver.Results) *Request {
	return &Request{
		Action:       t.action,
		ProjectDir:   t.projectDir,
		InputVersion: t.version,
		Deps:         deps,
	}
}

// TaskOptions tunes task construction for one submission.
type TaskOptions struct {
	// ForceAddrs forces the listed addresses regardless of their
	// configured force flag. Force does not propagate to dependencies.
	ForceAddrs []string
}

// FromModel constructs one task per configured action and wires the
// dependency edges between them. The returned map is keyed by address.
func FromModel(model *project.Model, registry *Registry, opts TaskOptions) (map[string]solver.Task, error) {
	if err := registry.Validate(model); err != nil {
		return nil, err
	}

	forced := make(map[string]bool, len(opts.ForceAddrs))
	for _, addr := range opts.ForceAddrs {
		if _, ok := model.Actions[addr]; !ok {
			return nil, fmt.Errorf("cannot force unknown action %q", addr)
		}
		forced[addr] = true
	}

	projectDir := ""
	if model.Project != nil {
		projectDir = model.Project.Dir
	}

	tasks := make(map[string]*actionTask, len(model.Actions))
	for _, addr := range model.Order {
		action := model.Actions[addr]
		tasks[addr] = &actionTask{
			action:     action,
			projectDir: projectDir,
			version:    project.InputVersion(action),
			force:      action.Force || forced[addr],
			registry:   registry,
		}
	}
	for _, addr := range model.Order {
		t := tasks[addr]
		for _, dep := range t.action.DependsOn {
			t.deps = append(t.deps, tasks[dep])
		}
		for _, dep := range t.action.StatusDependsOn {
			t.statusDeps = append(t.statusDeps, tasks[dep])
		}
	}

	out := make(map[string]solver.Task, len(tasks))
	for addr, t := range tasks {
		out[addr] = t
	}
	return out, nil
}

// NewBuildTask constructs a standalone build task. The factory functions
// exist for callers assembling graphs outside a loaded model, such as
// tests and embedders.
func NewBuildTask(action *project.Action, registry *Registry, deps ...solver.Task) solver.Task {
	return newTask(project.KindBuild, action, registry, deps)
}

// NewDeployTask constructs a standalone deploy task.
func NewDeployTask(action *project.Action, registry *Registry, deps ...solver.Task) solver.Task {
	return newTask(project.KindDeploy, action, registry, deps)
}

// NewRunTask constructs a standalone run task.
func NewRunTask(action *project.Action, registry *Registry, deps ...solver.Task) solver.Task {
	return newTask(project.KindRun, action, registry, deps)
}

// NewTestTask constructs a standalone test task.
func NewTestTask(action *project.Action, registry *Registry, deps ...solver.Task) solver.Task {
	return newTask(project.KindTest, action, registry, deps)
}

func newTask(kind string, action *project.Action, registry *Registry, deps []solver.Task) solver.Task {
	action.Kind = kind
	return &actionTask{
		action:   action,
		version:  project.InputVersion(action),
		force:    action.Force,
		registry: registry,
		deps:     deps,
	}
}
