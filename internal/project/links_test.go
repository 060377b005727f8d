package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelWith(t *testing.T, actions ...*Action) *Model {
	t.Helper()
	model := NewModel()
	model.Project = &Project{Name: "test", Dir: "/tmp"}
	for _, a := range actions {
		require.NoError(t, model.AddAction(a))
	}
	return model
}

func TestDeriveLinks(t *testing.T) {
	t.Run("deploy gains an implicit dependency on its build", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindBuild, Name: "api"},
			&Action{Kind: KindDeploy, Name: "api"},
		)

		require.NoError(t, deriveLinks(context.Background(), model))
		assert.Equal(t, []string{"build.api"}, model.Actions["deploy.api"].DependsOn)
	})

	t.Run("test and run gain build dependency and deploy status dependency", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindBuild, Name: "api"},
			&Action{Kind: KindDeploy, Name: "api"},
			&Action{Kind: KindTest, Name: "api"},
			&Action{Kind: KindRun, Name: "api"},
		)

		require.NoError(t, deriveLinks(context.Background(), model))
		for _, addr := range []string{"test.api", "run.api"} {
			assert.Equal(t, []string{"build.api"}, model.Actions[addr].DependsOn, addr)
			assert.Equal(t, []string{"deploy.api"}, model.Actions[addr].StatusDependsOn, addr)
		}
	})

	t.Run("no implicit links without a same-named counterpart", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindDeploy, Name: "db"},
			&Action{Kind: KindRun, Name: "worker"},
		)

		require.NoError(t, deriveLinks(context.Background(), model))
		assert.Empty(t, model.Actions["deploy.db"].DependsOn)
		assert.Empty(t, model.Actions["run.worker"].DependsOn)
		assert.Empty(t, model.Actions["run.worker"].StatusDependsOn)
	})

	t.Run("implicit links come before explicit ones without duplication", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindBuild, Name: "api"},
			&Action{Kind: KindBuild, Name: "base"},
			&Action{Kind: KindDeploy, Name: "api", DependsOn: []string{"build.base"}},
		)

		require.NoError(t, deriveLinks(context.Background(), model))
		assert.Equal(t, []string{"build.api", "build.base"}, model.Actions["deploy.api"].DependsOn)

		// Re-deriving must not duplicate the implicit edge.
		require.NoError(t, deriveLinks(context.Background(), model))
		assert.Equal(t, []string{"build.api", "build.base"}, model.Actions["deploy.api"].DependsOn)
	})

	t.Run("rejects unknown references", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindBuild, Name: "api", DependsOn: []string{"build.ghost"}},
		)

		err := deriveLinks(context.Background(), model)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown action "build.ghost"`)
	})

	t.Run("rejects self references", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindBuild, Name: "api", DependsOn: []string{"build.api"}},
		)

		err := deriveLinks(context.Background(), model)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "depends on itself")
	})

	t.Run("rejects unknown status references", func(t *testing.T) {
		model := modelWith(t,
			&Action{Kind: KindTest, Name: "api", StatusDependsOn: []string{"deploy.ghost"}},
		)

		err := deriveLinks(context.Background(), model)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `status-depends on unknown action "deploy.ghost"`)
	})
}
