package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/tendgo/internal/actions"
	"github.com/vk/tendgo/internal/solver"
	"github.com/vk/tendgo/internal/statuscache"
)

// Run executes the configured command against the loaded project and
// returns the full result set keyed by action address.
func (a *App) Run(ctx context.Context) (map[string]*solver.GraphResult, error) {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer()
		defer a.closeHealthcheckServer()
	}
	if remote, ok := a.cache.(*statuscache.Remote); ok {
		defer remote.Close()
	}

	rootAddrs, err := a.rootAddrs()
	if err != nil {
		return nil, err
	}
	if len(rootAddrs) == 0 {
		a.logger.Warn("Nothing to do for command.", "command", a.config.Command)
		return map[string]*solver.GraphResult{}, nil
	}

	opts := actions.TaskOptions{}
	if a.config.Force {
		opts.ForceAddrs = rootAddrs
	}
	tasks, err := actions.FromModel(a.model, a.registry, opts)
	if err != nil {
		return nil, err
	}
	roots := make([]solver.Task, 0, len(rootAddrs))
	for _, addr := range rootAddrs {
		roots = append(roots, tasks[addr])
	}

	s := solver.New(ctx, a.solverOptions())
	defer s.Close()

	a.logger.Info("🚀 Starting execution.", "command", a.config.Command, "roots", len(roots))
	results, err := s.Submit(ctx, roots, solver.SubmitOptions{
		ThrowOnError: !a.config.KeepGoing,
	})
	if err != nil {
		return results, fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.", "results", len(results))
	return results, nil
}

// rootAddrs selects the root actions for the configured command: every
// action for "up", otherwise the actions of the command's kind,
// optionally narrowed to the requested target names.
func (a *App) rootAddrs() ([]string, error) {
	if a.config.Command == "up" {
		if len(a.config.Targets) > 0 {
			return nil, fmt.Errorf("command up does not accept targets")
		}
		return append([]string(nil), a.model.Order...), nil
	}

	kindAddrs := a.model.ByKind(a.config.Command)
	if len(a.config.Targets) == 0 {
		return kindAddrs, nil
	}

	known := make(map[string]bool, len(kindAddrs))
	for _, addr := range kindAddrs {
		known[addr] = true
	}
	var roots []string
	for _, target := range a.config.Targets {
		addr := a.config.Command + "." + target
		if !known[addr] {
			return nil, fmt.Errorf("unknown %s target %q", a.config.Command, target)
		}
		roots = append(roots, addr)
	}
	sort.Strings(roots)
	return roots, nil
}

// solverOptions merges the CLI override with the project's concurrency
// block.
func (a *App) solverOptions() solver.Options {
	opts := solver.Options{MaxParallel: a.config.MaxParallel}
	if c := a.model.Concurrency; c != nil {
		if opts.MaxParallel <= 0 {
			opts.MaxParallel = c.MaxParallel
		}
		opts.PerTypeLimits = c.PerType
	}
	return opts
}
