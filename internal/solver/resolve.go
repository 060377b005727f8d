package solver

// TaskGraph is the resolved dependency closure of one submission: every
// task reachable from the roots via dependency or status-dependency
// edges, deduplicated by key, with a validated acyclic dependency
// relation.
type TaskGraph struct {
	// roots holds the keys of the submitted root tasks, in submission order.
	roots []string
	// order lists every key in the closure, dependencies before
	// dependents, deterministic for a given submission.
	order []string
	// tasks maps each key to its first-seen Task instance. Duplicate
	// instances sharing a key are rewired onto this one.
	tasks map[string]Task
	// deps and statusDeps hold the outgoing edge lists per key.
	deps       map[string][]string
	statusDeps map[string][]string
}

// Roots returns the submitted root keys in submission order.
func (g *TaskGraph) Roots() []string { return g.roots }

// Order returns every key in the closure, dependencies first.
func (g *TaskGraph) Order() []string { return g.order }

// Task returns the canonical (first-seen) instance for a key.
func (g *TaskGraph) Task(key string) Task { return g.tasks[key] }

// Dependencies returns the dependency keys of a task.
func (g *TaskGraph) Dependencies(key string) []string { return g.deps[key] }

// StatusDependencies returns the status-dependency keys of a task.
func (g *TaskGraph) StatusDependencies(key string) []string { return g.statusDeps[key] }

// Resolve walks the dependency and status-dependency edges transitively
// from the given roots, deduplicating tasks by key, and validates that
// the relation restricted to dependency edges is acyclic. A detected
// cycle is returned as a *CycleError carrying the ordered key list; this
// is a configuration error, not a solver fault.
func Resolve(roots []Task) (*TaskGraph, error) {
	g := &TaskGraph{
		tasks:      make(map[string]Task),
		deps:       make(map[string][]string),
		statusDeps: make(map[string][]string),
	}

	var collect func(t Task) string
	collect = func(t Task) string {
		key := t.Key()
		if _, seen := g.tasks[key]; seen {
			// First submission wins; later instances with the same key are
			// equivalent for the purposes of the run and are not invoked.
			return key
		}
		g.tasks[key] = t
		for _, dep := range t.Dependencies() {
			depKey := collect(dep)
			g.deps[key] = appendUnique(g.deps[key], depKey)
		}
		for _, dep := range t.StatusDependencies() {
			depKey := collect(dep)
			g.statusDeps[key] = appendUnique(g.statusDeps[key], depKey)
		}
		return key
	}

	for _, root := range roots {
		g.roots = appendUnique(g.roots, collect(root))
	}

	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	g.buildOrder()
	return g, nil
}

// checkCycles runs a coloring DFS over the dependency edges only.
// Status-dependency edges do not participate: they require resolution,
// not successful processing, and may legitimately point "sideways".
func (g *TaskGraph) checkCycles() error {
	const (
		white = iota // unvisited
		gray         // on the current traversal stack
		black        // fully explored
	)
	colors := make(map[string]int, len(g.tasks))
	var stack []string

	var visit func(key string) *CycleError
	visit = func(key string) *CycleError {
		colors[key] = gray
		stack = append(stack, key)
		for _, depKey := range g.deps[key] {
			switch colors[depKey] {
			case gray:
				// Slice the stack from the repeated key to report the
				// members of the cycle in traversal order.
				for i, k := range stack {
					if k == depKey {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						return &CycleError{Keys: cycle}
					}
				}
			case white:
				if err := visit(depKey); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[key] = black
		return nil
	}

	for _, rootKey := range g.roots {
		if colors[rootKey] == white {
			if err := visit(rootKey); err != nil {
				return err
			}
		}
	}
	// Roots only reach the closure via edges already walked above, but
	// status-only subtrees may still contain unvisited dependency chains.
	for key := range g.tasks {
		if colors[key] == white {
			if err := visit(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildOrder produces a deterministic dependencies-first ordering of the
// whole closure, following both edge kinds.
func (g *TaskGraph) buildOrder() {
	visited := make(map[string]bool, len(g.tasks))
	var visit func(key string)
	visit = func(key string) {
		if visited[key] {
			return
		}
		visited[key] = true
		for _, depKey := range g.deps[key] {
			visit(depKey)
		}
		for _, depKey := range g.statusDeps[key] {
			visit(depKey)
		}
		g.order = append(g.order, key)
	}
	for _, rootKey := range g.roots {
		visit(rootKey)
	}
}

// appendUnique appends s to list unless it is already present, keeping
// declared edge order stable.
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
