package project

import "github.com/hashicorp/hcl/v2"

// --- HCL file schemas ---

// projectSchema represents the `project` block.
type projectSchema struct {
	Name               string `hcl:"name"`
	DefaultEnvironment string `hcl:"default_environment,optional"`
}

// actionSchema represents one build/deploy/run/test block.
type actionSchema struct {
	Name            string            `hcl:"name,label"`
	Description     string            `hcl:"description,optional"`
	Command         []string          `hcl:"command,optional"`
	Env             map[string]string `hcl:"env,optional"`
	DependsOn       []string          `hcl:"depends_on,optional"`
	StatusDependsOn []string          `hcl:"status_depends_on,optional"`
	Force           bool              `hcl:"force,optional"`
}

// concurrencySchema represents the `concurrency` block.
type concurrencySchema struct {
	MaxParallel int            `hcl:"max_parallel,optional"`
	PerType     map[string]int `hcl:"per_type,optional"`
}

// fileRoot decodes all supported top-level blocks from one project file.
type fileRoot struct {
	Project     *projectSchema     `hcl:"project,block"`
	Builds      []*actionSchema    `hcl:"build,block"`
	Deploys     []*actionSchema    `hcl:"deploy,block"`
	Runs        []*actionSchema    `hcl:"run,block"`
	Tests       []*actionSchema    `hcl:"test,block"`
	Concurrency *concurrencySchema `hcl:"concurrency,block"`
	Remain      hcl.Body           `hcl:",remain"`
}

// projectOnly is the first-pass schema used to find the project block
// before the evaluation context exists.
type projectOnly struct {
	Project *projectSchema `hcl:"project,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

// translateAction converts the HCL-specific schema into the agnostic model.
func translateAction(kind string, s *actionSchema) *Action {
	return &Action{
		Kind:            kind,
		Name:            s.Name,
		Description:     s.Description,
		Command:         s.Command,
		Env:             s.Env,
		DependsOn:       append([]string(nil), s.DependsOn...),
		StatusDependsOn: append([]string(nil), s.StatusDependsOn...),
		Force:           s.Force,
	}
}
