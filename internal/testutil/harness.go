// Package testutil provides the shared harness for integration tests:
// fixture projects written to a temp dir, an app run against them, and
// captured log output.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/tendgo/internal/actions"
	"github.com/vk/tendgo/internal/app"
	"github.com/vk/tendgo/internal/solver"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Results   map[string]*solver.GraphResult
	Err       error
	App       *app.App
}

// RunProject writes the given HCL files into a temp project directory
// and runs the app against them with the provided config overrides. A
// nil registry selects the default handlers with an in-memory cache.
func RunProject(t *testing.T, files map[string]string, config app.Config, registry *actions.Registry) *HarnessResult {
	t.Helper()

	projectDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(projectDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	config.ProjectPath = projectDir
	if config.Command == "" {
		config.Command = "up"
	}
	if config.LogLevel == "" {
		config.LogLevel = "debug"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	validated, err := app.NewConfig(config)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp, err := app.NewApp(context.Background(), logBuffer, validated, registry)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}

	results, runErr := testApp.Run(context.Background())
	if os.Getenv("TENDGO_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Results:   results,
		Err:       runErr,
		App:       testApp,
	}
}
