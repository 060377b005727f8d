// Package project loads and validates TendGo project configuration: the
// project block, the action blocks (build, deploy, run, test) and the
// dependency edges between them. The solver never re-derives edges; this
// package supplies them all at task-construction time.
package project

import "fmt"

// Action kinds. The kind doubles as the key prefix of the corresponding
// task and as its per-type concurrency bucket.
const (
	KindBuild  = "build"
	KindDeploy = "deploy"
	KindRun    = "run"
	KindTest   = "test"
)

// Kinds lists the action kinds in canonical order.
var Kinds = []string{KindBuild, KindDeploy, KindRun, KindTest}

// Project holds the project-level settings.
type Project struct {
	Name string
	// Dir is the directory the project file was loaded from; action
	// commands run relative to it.
	Dir string
	// Environment is the project's default environment name, exposed to
	// expressions as project.environment.
	Environment string
}

// Action is the format-agnostic description of one unit of work.
type Action struct {
	Kind        string
	Name        string
	Description string
	// Command is the argv the default process handler executes.
	Command []string
	Env     map[string]string
	// DependsOn and StatusDependsOn hold fully qualified addresses
	// ("kind.name"), explicit plus derived implicit links.
	DependsOn       []string
	StatusDependsOn []string
	Force           bool
}

// Addr returns the action's fully qualified address.
func (a *Action) Addr() string {
	return fmt.Sprintf("%s.%s", a.Kind, a.Name)
}

// Concurrency bounds simultaneous task execution.
type Concurrency struct {
	MaxParallel int
	PerType     map[string]int
}

// Model is the merged configuration of one project.
type Model struct {
	Project     *Project
	Concurrency *Concurrency
	// Actions maps address to action. Order preserves declaration order
	// across files for deterministic task construction.
	Actions map[string]*Action
	Order   []string
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{Actions: make(map[string]*Action)}
}

// AddAction merges one action into the model. Duplicate addresses are a
// configuration error.
func (m *Model) AddAction(a *Action) error {
	addr := a.Addr()
	if _, exists := m.Actions[addr]; exists {
		return fmt.Errorf("duplicate action %q", addr)
	}
	m.Actions[addr] = a
	m.Order = append(m.Order, addr)
	return nil
}

// ByKind returns the addresses of all actions of one kind, in
// declaration order.
func (m *Model) ByKind(kind string) []string {
	var out []string
	for _, addr := range m.Order {
		if m.Actions[addr].Kind == kind {
			out = append(out, addr)
		}
	}
	return out
}
