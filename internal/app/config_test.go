package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("accepts every valid command", func(t *testing.T) {
		for _, command := range []string{"up", "build", "deploy", "run", "test"} {
			config, err := NewConfig(Config{ProjectPath: ".", Command: command})
			require.NoError(t, err, command)
			assert.Equal(t, command, config.Command)
		}
	})

	t.Run("rejects an empty project path", func(t *testing.T) {
		_, err := NewConfig(Config{Command: "up"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ProjectPath")
	})

	t.Run("rejects an unknown command", func(t *testing.T) {
		_, err := NewConfig(Config{ProjectPath: ".", Command: "teardown"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown command "teardown"`)
	})

	t.Run("returns a copy of the input", func(t *testing.T) {
		in := Config{ProjectPath: ".", Command: "up"}
		config, err := NewConfig(in)
		require.NoError(t, err)
		in.Command = "changed"
		assert.Equal(t, "up", config.Command)
	})
}
