package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/tendgo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Loader reads every .hcl file under a project path and merges the
// blocks into a single validated Model.
type Loader struct{}

// NewLoader creates a project configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// parsedFile pairs a file path with its parsed HCL body.
type parsedFile struct {
	path string
	file *hcl.File
}

// Load discovers, parses and merges all project files under path. The
// first pass locates the single project block; the second decodes every
// file against an evaluation context exposing the `project` variable.
func (l *Loader) Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl project files found under %s", path)
	}
	logger.Debug("Discovered project files.", "count", len(files))

	// Parsing dominates load time for large projects, so files are
	// parsed concurrently. Each goroutine owns its parser instance.
	parsed := make([]parsedFile, len(files))
	g, _ := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			parser := hclparse.NewParser()
			hclFile, diags := parser.ParseHCLFile(file)
			if diags.HasErrors() {
				return fmt.Errorf("failed to parse %s: %s", file, diags.Error())
			}
			parsed[i] = parsedFile{path: file, file: hclFile}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	proj, err := l.findProject(parsed, path)
	if err != nil {
		return nil, err
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.ObjectVal(map[string]cty.Value{
				"name":        cty.StringVal(proj.Name),
				"dir":         cty.StringVal(proj.Dir),
				"environment": cty.StringVal(proj.Environment),
			}),
		},
	}

	model := NewModel()
	model.Project = proj
	for _, pf := range parsed {
		var root fileRoot
		if diags := gohcl.DecodeBody(pf.file.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %s", pf.path, diags.Error())
		}
		if err := mergeFile(model, &root); err != nil {
			return nil, fmt.Errorf("%s: %w", pf.path, err)
		}
	}

	if err := deriveLinks(ctx, model); err != nil {
		return nil, err
	}

	logger.Debug("Project loaded.", "project", proj.Name, "actions", len(model.Actions))
	return model, nil
}

// findProject locates exactly one project block across all files.
func (l *Loader) findProject(parsed []parsedFile, path string) (*Project, error) {
	var proj *Project
	for _, pf := range parsed {
		var head projectOnly
		if diags := gohcl.DecodeBody(pf.file.Body, nil, &head); diags.HasErrors() {
			// Attribute expressions may reference the not-yet-known project
			// variable; only the project block itself matters in this pass.
			continue
		}
		if head.Project == nil {
			continue
		}
		if proj != nil {
			return nil, fmt.Errorf("multiple project blocks found (second one in %s)", pf.path)
		}
		dir := path
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			dir = filepath.Dir(path)
		}
		proj = &Project{
			Name:        head.Project.Name,
			Dir:         dir,
			Environment: head.Project.DefaultEnvironment,
		}
	}
	if proj == nil {
		return nil, fmt.Errorf("no project block found under %s", path)
	}
	return proj, nil
}

// mergeFile folds one decoded file into the model.
func mergeFile(model *Model, root *fileRoot) error {
	add := func(kind string, schemas []*actionSchema) error {
		for _, s := range schemas {
			if err := model.AddAction(translateAction(kind, s)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(KindBuild, root.Builds); err != nil {
		return err
	}
	if err := add(KindDeploy, root.Deploys); err != nil {
		return err
	}
	if err := add(KindRun, root.Runs); err != nil {
		return err
	}
	if err := add(KindTest, root.Tests); err != nil {
		return err
	}
	if root.Concurrency != nil {
		if model.Concurrency != nil {
			return fmt.Errorf("duplicate concurrency block")
		}
		model.Concurrency = &Concurrency{
			MaxParallel: root.Concurrency.MaxParallel,
			PerType:     root.Concurrency.PerType,
		}
	}
	return nil
}

// findHCLFiles walks the given path and returns all .hcl files, sorted
// for deterministic merge order.
func findHCLFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing project path %s: %w", path, err)
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".hcl" {
			return nil, fmt.Errorf("project file %s is not an .hcl file", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(p) == ".hcl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
