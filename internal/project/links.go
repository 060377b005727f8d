package project

import (
	"context"
	"fmt"

	"github.com/vk/tendgo/internal/ctxlog"
)

// deriveLinks finishes the dependency edges of every action: implicit
// links between same-named actions are added first, then all references
// (explicit and implicit) are validated against the model.
//
// Implicit links:
//   - deploy.X depends on build.X when build.X exists
//   - test.X and run.X depend on build.X and status-depend on deploy.X
//     when those exist
func deriveLinks(ctx context.Context, model *Model) error {
	logger := ctxlog.FromContext(ctx)

	for _, addr := range model.Order {
		action := model.Actions[addr]
		buildAddr := fmt.Sprintf("%s.%s", KindBuild, action.Name)
		deployAddr := fmt.Sprintf("%s.%s", KindDeploy, action.Name)

		switch action.Kind {
		case KindDeploy:
			if _, ok := model.Actions[buildAddr]; ok {
				action.DependsOn = prependUnique(action.DependsOn, buildAddr)
				logger.Debug("Linked implicit dependency.", "from", addr, "to", buildAddr)
			}
		case KindTest, KindRun:
			if _, ok := model.Actions[buildAddr]; ok {
				action.DependsOn = prependUnique(action.DependsOn, buildAddr)
				logger.Debug("Linked implicit dependency.", "from", addr, "to", buildAddr)
			}
			if _, ok := model.Actions[deployAddr]; ok {
				action.StatusDependsOn = prependUnique(action.StatusDependsOn, deployAddr)
				logger.Debug("Linked implicit status dependency.", "from", addr, "to", deployAddr)
			}
		}
	}

	for _, addr := range model.Order {
		action := model.Actions[addr]
		for _, dep := range action.DependsOn {
			if _, ok := model.Actions[dep]; !ok {
				return fmt.Errorf("action %q depends on unknown action %q", addr, dep)
			}
			if dep == addr {
				return fmt.Errorf("action %q depends on itself", addr)
			}
		}
		for _, dep := range action.StatusDependsOn {
			if _, ok := model.Actions[dep]; !ok {
				return fmt.Errorf("action %q status-depends on unknown action %q", addr, dep)
			}
			if dep == addr {
				return fmt.Errorf("action %q status-depends on itself", addr)
			}
		}
	}
	return nil
}

// prependUnique puts addr at the front of list unless already present.
func prependUnique(list []string, addr string) []string {
	for _, existing := range list {
		if existing == addr {
			return list
		}
	}
	return append([]string{addr}, list...)
}
