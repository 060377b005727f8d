package actions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/vk/tendgo/internal/ctxlog"
	"github.com/vk/tendgo/internal/project"
	"github.com/vk/tendgo/internal/solver"
	"github.com/vk/tendgo/internal/statuscache"
)

// RegisterDefaults installs the standard handlers for every kind: a
// cache-backed status check and a command-executing process step. The
// cache may be nil, in which case every status check reports not-ready.
func RegisterDefaults(registry *Registry, cache statuscache.Cache) {
	for _, kind := range project.Kinds {
		registry.RegisterStatus(kind, CacheStatus(cache))
		registry.RegisterProcess(kind, CommandProcess(cache))
	}
}

// CacheStatus builds a status handler that reports ready when the cache
// holds the task's current input version. A cache transport failure
// degrades to unknown rather than failing the task: processing is the
// safe fallback.
func CacheStatus(cache statuscache.Cache) StatusFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		logger := ctxlog.FromContext(ctx).With("action", req.Action.Addr())
		if cache == nil {
			return &Response{State: solver.StateNotReady}, nil
		}
		version, ok, err := cache.Lookup(ctx, req.Action.Addr())
		if err != nil {
			logger.Warn("Status cache unavailable, assuming unknown.", "error", err)
			return &Response{State: solver.StateUnknown}, nil
		}
		if !ok || version != req.InputVersion {
			return &Response{
				State:   solver.StateNotReady,
				Outputs: solver.Outputs{"cachedVersion": version},
			}, nil
		}
		return &Response{
			State:   solver.StateReady,
			Outputs: solver.Outputs{"cachedVersion": version},
		}, nil
	}
}

// CommandProcess builds a process handler that executes the action's
// command and records the new input version to the cache on success.
// Actions without a command are no-ops that still settle as ready.
func CommandProcess(cache statuscache.Cache) ProcessFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		logger := ctxlog.FromContext(ctx).With("action", req.Action.Addr())

		outputs := solver.Outputs{}
		if len(req.Action.Command) > 0 {
			logger.Info("▶️ Running command", "command", req.Action.Command)
			var buf bytes.Buffer
			cmd := exec.CommandContext(ctx, req.Action.Command[0], req.Action.Command[1:]...)
			cmd.Dir = req.ProjectDir
			cmd.Stdout = &buf
			cmd.Stderr = &buf
			cmd.Env = os.Environ()
			for k, v := range req.Action.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
			if err := cmd.Run(); err != nil {
				return nil, fmt.Errorf("command failed for %s: %w\n%s", req.Action.Addr(), err, buf.String())
			}
			outputs["log"] = buf.String()
		} else {
			logger.Debug("Action has no command, nothing to execute.")
		}

		if cache != nil {
			if err := cache.Record(ctx, req.Action.Addr(), req.InputVersion); err != nil {
				// The work itself succeeded; a failed cache write only costs
				// a redundant rebuild next run.
				logger.Warn("Failed to record status cache entry.", "error", err)
			}
		}

		logger.Info("✅ Finished", "action", req.Action.Addr())
		return &Response{State: solver.StateReady, Outputs: outputs}, nil
	}
}
