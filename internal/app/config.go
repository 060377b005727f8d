package app

import (
	"errors"
	"fmt"

	"github.com/vk/tendgo/internal/project"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ProjectPath is a single .hcl file or a directory of .hcl files.
	ProjectPath string
	// Command selects what to execute: build, deploy, run, test or up.
	Command string
	// Targets optionally narrows the command to specific action names.
	Targets []string

	// Force skips the status short-circuit for the root actions only.
	Force bool
	// KeepGoing reports all failures through the result set instead of
	// returning on the first one.
	KeepGoing bool

	// MaxParallel overrides the project's concurrency setting when > 0.
	MaxParallel int
	// StatusCacheURL points at a shared status service; empty selects the
	// in-memory cache.
	StatusCacheURL string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// validCommands are the accepted values for Config.Command.
var validCommands = map[string]bool{
	"up":               true,
	project.KindBuild:  true,
	project.KindDeploy: true,
	project.KindRun:    true,
	project.KindTest:   true,
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if !validCommands[cfg.Command] {
		return nil, fmt.Errorf("unknown command %q: must be one of up, build, deploy, run, test", cfg.Command)
	}
	return &cfg, nil
}
