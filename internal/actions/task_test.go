package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tendgo/internal/project"
	"github.com/vk/tendgo/internal/solver"
)

func fullRegistry() *Registry {
	registry := NewRegistry()
	for _, kind := range project.Kinds {
		registry.RegisterProcess(kind, okProcess)
	}
	return registry
}

func linkedModel(t *testing.T) *project.Model {
	t.Helper()
	model := project.NewModel()
	model.Project = &project.Project{Name: "demo", Dir: "/tmp/demo"}
	actions := []*project.Action{
		{Kind: project.KindBuild, Name: "api"},
		{Kind: project.KindDeploy, Name: "api", DependsOn: []string{"build.api"}},
		{Kind: project.KindTest, Name: "api", DependsOn: []string{"build.api"}, StatusDependsOn: []string{"deploy.api"}},
	}
	for _, a := range actions {
		require.NoError(t, model.AddAction(a))
	}
	return model
}

func TestFromModel(t *testing.T) {
	t.Run("wires dependency edges by address", func(t *testing.T) {
		tasks, err := FromModel(linkedModel(t), fullRegistry(), TaskOptions{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		testTask := tasks["test.api"]
		require.NotNil(t, testTask)
		require.Len(t, testTask.Dependencies(), 1)
		assert.Equal(t, "build.api", testTask.Dependencies()[0].Key())
		require.Len(t, testTask.StatusDependencies(), 1)
		assert.Equal(t, "deploy.api", testTask.StatusDependencies()[0].Key())

		// Edges point at the shared instances, not copies.
		assert.Same(t, tasks["build.api"], testTask.Dependencies()[0])
	})

	t.Run("applies force to the listed addresses only", func(t *testing.T) {
		tasks, err := FromModel(linkedModel(t), fullRegistry(), TaskOptions{
			ForceAddrs: []string{"deploy.api"},
		})
		require.NoError(t, err)

		assert.True(t, tasks["deploy.api"].Force())
		assert.False(t, tasks["build.api"].Force())
		assert.False(t, tasks["test.api"].Force())
	})

	t.Run("rejects forcing an unknown address", func(t *testing.T) {
		_, err := FromModel(linkedModel(t), fullRegistry(), TaskOptions{
			ForceAddrs: []string{"build.ghost"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"build.ghost"`)
	})

	t.Run("rejects a model missing handlers", func(t *testing.T) {
		_, err := FromModel(linkedModel(t), NewRegistry(), TaskOptions{})
		require.Error(t, err)
	})

	t.Run("assigns stable input versions", func(t *testing.T) {
		tasks1, err := FromModel(linkedModel(t), fullRegistry(), TaskOptions{})
		require.NoError(t, err)
		tasks2, err := FromModel(linkedModel(t), fullRegistry(), TaskOptions{})
		require.NoError(t, err)
		assert.Equal(t, tasks1["build.api"].InputVersion(), tasks2["build.api"].InputVersion())
	})
}

func TestActionTask(t *testing.T) {
	t.Run("reports unknown without a status handler", func(t *testing.T) {
		registry := fullRegistry()
		task := NewBuildTask(&project.Action{Name: "api"}, registry)

		state, outputs, err := task.GetStatus(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, solver.StateUnknown, state)
		assert.Nil(t, outputs)
	})

	t.Run("maps handler errors to a failed state", func(t *testing.T) {
		errBoom := errors.New("docker daemon unreachable")
		registry := NewRegistry()
		registry.RegisterProcess(project.KindBuild, func(context.Context, *Request) (*Response, error) {
			return nil, errBoom
		})
		task := NewBuildTask(&project.Action{Name: "api"}, registry)

		state, _, err := task.Process(context.Background(), nil)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, solver.StateFailed, state)
	})

	t.Run("fails processing without a process handler", func(t *testing.T) {
		task := NewDeployTask(&project.Action{Name: "api"}, NewRegistry())
		_, _, err := task.Process(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `kind "deploy"`)
	})

	t.Run("passes the request through to handlers", func(t *testing.T) {
		var seen *Request
		registry := NewRegistry()
		registry.RegisterStatus(project.KindRun, func(_ context.Context, req *Request) (*Response, error) {
			seen = req
			return &Response{State: solver.StateNotReady}, nil
		})
		task := NewRunTask(&project.Action{Name: "worker"}, registry)

		deps := solver.Results{"build.worker": {Key: "build.worker"}}
		_, _, err := task.GetStatus(context.Background(), deps)
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, "run.worker", seen.Action.Addr())
		assert.Equal(t, task.InputVersion(), seen.InputVersion)
		assert.Equal(t, deps, seen.Deps)
	})
}
