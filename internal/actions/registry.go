// Package actions provides the concrete task variants the solver
// schedules: builds, deploys, runs and tests constructed from project
// configuration. The solver only ever sees the Task interface; variants
// differ in which registered handlers they invoke.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/tendgo/internal/project"
	"github.com/vk/tendgo/internal/solver"
)

// Request carries everything a handler needs for one invocation.
type Request struct {
	// Action is the configuration of the task being handled.
	Action *project.Action
	// ProjectDir is the directory commands run in.
	ProjectDir string
	// InputVersion is the task's content fingerprint.
	InputVersion string
	// Deps holds the results of the task's declared dependencies and
	// status dependencies. Handlers must treat it as read-only.
	Deps solver.Results
}

// Response is a handler's reported state plus its outputs.
type Response struct {
	State   solver.ActionState
	Outputs solver.Outputs
}

// StatusFunc checks whether an action's target is already satisfied.
type StatusFunc func(ctx context.Context, req *Request) (*Response, error)

// ProcessFunc performs an action's actual work.
type ProcessFunc func(ctx context.Context, req *Request) (*Response, error)

// Registry maps action kinds to their lifecycle handlers for one app
// instance.
type Registry struct {
	status  map[string]StatusFunc
	process map[string]ProcessFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		status:  make(map[string]StatusFunc),
		process: make(map[string]ProcessFunc),
	}
}

// RegisterStatus registers the status handler for a kind. Registering a
// kind twice is a programmer error.
func (r *Registry) RegisterStatus(kind string, fn StatusFunc) {
	if _, exists := r.status[kind]; exists {
		panic(fmt.Sprintf("status handler for kind %q already registered", kind))
	}
	slog.Debug("Registering status handler.", "kind", kind)
	r.status[kind] = fn
}

// RegisterProcess registers the process handler for a kind.
func (r *Registry) RegisterProcess(kind string, fn ProcessFunc) {
	if _, exists := r.process[kind]; exists {
		panic(fmt.Sprintf("process handler for kind %q already registered", kind))
	}
	slog.Debug("Registering process handler.", "kind", kind)
	r.process[kind] = fn
}

// Status returns the status handler for a kind, or nil when none is
// registered (the task then always processes).
func (r *Registry) Status(kind string) StatusFunc { return r.status[kind] }

// Process returns the process handler for a kind.
func (r *Registry) Process(kind string) ProcessFunc { return r.process[kind] }

// Validate checks that every kind used by the model has a process
// handler. Mismatches between configuration and registered code are
// caught before anything executes.
func (r *Registry) Validate(model *project.Model) error {
	for _, addr := range model.Order {
		kind := model.Actions[addr].Kind
		if r.process[kind] == nil {
			return fmt.Errorf("no process handler registered for kind %q (action %q)", kind, addr)
		}
	}
	return nil
}
