// Package cli parses command-line arguments into an app.Config and
// renders result summaries.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/tendgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("tendgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
TendGo - builds, deploys and tests the actions of a project dependency graph.

Usage:
  tendgo [options] <command> [targets...]

Commands:
  up        execute every action in the project
  build     execute build actions (all, or the named targets)
  deploy    execute deploy actions
  run       execute run actions
  test      execute test actions

Options:
`)
		flagSet.PrintDefaults()
	}

	projectFlag := flagSet.String("project", ".", "Path to the project file or directory.")
	pFlag := flagSet.String("p", "", "Path to the project file or directory (shorthand).")
	forceFlag := flagSet.Bool("force", false, "Skip the status check for the requested actions and always process them.")
	keepGoingFlag := flagSet.Bool("keep-going", false, "Report failures through the summary instead of exiting on the first error.")
	maxParallelFlag := flagSet.Int("max-parallel", 0, "Maximum number of concurrently executing actions. 0 uses the project setting.")
	cacheURLFlag := flagSet.String("status-cache-url", "", "Base URL of a shared status cache service.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	command := flagSet.Arg(0)
	targets := flagSet.Args()[1:]

	path := *projectFlag
	if *pFlag != "" {
		path = *pFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ProjectPath:     path,
		Command:         command,
		Targets:         targets,
		Force:           *forceFlag,
		KeepGoing:       *keepGoingFlag,
		MaxParallel:     *maxParallelFlag,
		StatusCacheURL:  *cacheURLFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
