// Package app wires configuration, logging, the action registry and the
// solver into a runnable application instance.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/tendgo/internal/actions"
	"github.com/vk/tendgo/internal/ctxlog"
	"github.com/vk/tendgo/internal/project"
	"github.com/vk/tendgo/internal/statuscache"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *actions.Registry
	model      *project.Model
	cache      statuscache.Cache
	httpServer *http.Server
}

// NewApp constructs a fully initialized App: isolated logger, loaded and
// validated project model, and a populated handler registry. Passing a
// nil registry installs the default cache-backed handlers; tests inject
// their own.
func NewApp(ctx context.Context, outW io.Writer, config *Config, registry *actions.Registry) (*App, error) {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	model, err := project.NewLoader().Load(ctx, config.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project configuration: %w", err)
	}
	logger.Debug("Project configuration loaded.", "actions", len(model.Actions))

	var cache statuscache.Cache
	if registry == nil {
		if config.StatusCacheURL != "" {
			cache = statuscache.NewRemote(config.StatusCacheURL)
			logger.Debug("Using remote status cache.", "url", config.StatusCacheURL)
		} else {
			cache = statuscache.NewMemory()
		}
		registry = actions.NewRegistry()
		actions.RegisterDefaults(registry, cache)
	}

	if err := registry.Validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	return &App{
		ctx:      ctx,
		outW:     outW,
		logger:   logger,
		config:   config,
		registry: registry,
		model:    model,
		cache:    cache,
	}, nil
}

// Model returns the loaded project model. This is primarily for testing.
func (a *App) Model() *project.Model { return a.model }

// withLogger embeds the app's logger into a caller-supplied context.
func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
