// Package dag tracks which materialized views read from which tables.
// It supports cycle detection, rebuild ordering and downstream change
// propagation.
package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Graph is a dependency graph of tables. An edge runs from a source table to
// a view that reads it.
type Graph struct {
	nodes   map[core.IDAndVersion]struct{}
	edges   map[core.IDAndVersion][]core.IDAndVersion // source -> dependent views
	parents map[core.IDAndVersion][]core.IDAndVersion // view -> sources
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[core.IDAndVersion]struct{}),
		edges:   make(map[core.IDAndVersion][]core.IDAndVersion),
		parents: make(map[core.IDAndVersion][]core.IDAndVersion),
	}
}

// FromViewSources builds a graph from a view -> sources mapping.
func FromViewSources(sources map[core.IDAndVersion][]core.IDAndVersion) (*Graph, error) {
	g := NewGraph()
	for view, srcs := range sources {
		if err := g.SetSources(view, srcs); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Clone returns an independent copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for id := range g.nodes {
		c.nodes[id] = struct{}{}
	}
	for id, children := range g.edges {
		c.edges[id] = slices.Clone(children)
	}
	for id, parents := range g.parents {
		c.parents[id] = slices.Clone(parents)
	}
	return c
}

func (g *Graph) addNode(id core.IDAndVersion) {
	g.nodes[id] = struct{}{}
}

// AddEdge records that view reads from source.
func (g *Graph) AddEdge(source, view core.IDAndVersion) error {
	if source == view {
		return fmt.Errorf("self-loop detected: %s", view)
	}
	g.addNode(source)
	g.addNode(view)

	if !slices.Contains(g.edges[source], view) {
		g.edges[source] = append(g.edges[source], view)
	}
	if !slices.Contains(g.parents[view], source) {
		g.parents[view] = append(g.parents[view], source)
	}
	return nil
}

// SetSources replaces the sources of view.
func (g *Graph) SetSources(view core.IDAndVersion, sources []core.IDAndVersion) error {
	for _, old := range g.parents[view] {
		g.edges[old] = slices.DeleteFunc(g.edges[old], func(c core.IDAndVersion) bool { return c == view })
	}
	delete(g.parents, view)
	g.addNode(view)

	for _, src := range sources {
		if err := g.AddEdge(src, view); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a node and all its edges.
func (g *Graph) Remove(id core.IDAndVersion) {
	_ = g.SetSources(id, nil)
	for _, child := range g.edges[id] {
		g.parents[child] = slices.DeleteFunc(g.parents[child], func(p core.IDAndVersion) bool { return p == id })
	}
	delete(g.edges, id)
	delete(g.nodes, id)
}

// Sources returns the direct sources of a view, ordered.
func (g *Graph) Sources(view core.IDAndVersion) []core.IDAndVersion {
	return sorted(g.parents[view])
}

// Dependents returns the views that read a table directly, ordered.
func (g *Graph) Dependents(table core.IDAndVersion) []core.IDAndVersion {
	return sorted(g.edges[table])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []core.IDAndVersion) {
	visited := make(map[core.IDAndVersion]bool)
	recStack := make(map[core.IDAndVersion]bool)
	path := make(map[core.IDAndVersion]core.IDAndVersion)

	var cyclePath []core.IDAndVersion

	var dfs func(id core.IDAndVersion) bool
	dfs = func(id core.IDAndVersion) bool {
		visited[id] = true
		recStack[id] = true

		for _, child := range sorted(g.edges[id]) {
			if !visited[child] {
				path[child] = id
				if dfs(child) {
					return true
				}
			} else if recStack[child] {
				cyclePath = []core.IDAndVersion{child}
				for curr := id; curr != child; curr = path[curr] {
					cyclePath = append([]core.IDAndVersion{curr}, cyclePath...)
				}
				cyclePath = append([]core.IDAndVersion{child}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.ids() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// WouldCycle reports whether replacing the sources of view would introduce
// a cycle. The graph itself is not changed.
func (g *Graph) WouldCycle(view core.IDAndVersion, sources []core.IDAndVersion) (bool, []core.IDAndVersion, error) {
	c := g.Clone()
	if err := c.SetSources(view, sources); err != nil {
		return false, nil, err
	}
	cycle, path := c.HasCycle()
	return cycle, path, nil
}

// TopologicalSort returns every node, sources before the views that read them.
// Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]core.IDAndVersion, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %s", FormatPath(cyclePath))
	}

	visited := make(map[core.IDAndVersion]bool)
	var result []core.IDAndVersion

	var visit func(id core.IDAndVersion)
	visit = func(id core.IDAndVersion) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range sorted(g.parents[id]) {
			visit(parent)
		}
		result = append(result, id)
	}

	for _, id := range g.ids() {
		visit(id)
	}
	return result, nil
}

// AffectedViews returns every view downstream of the changed tables, in
// rebuild order. The changed tables themselves are not included unless they
// are downstream of another changed table.
func (g *Graph) AffectedViews(changed ...core.IDAndVersion) ([]core.IDAndVersion, error) {
	affected := make(map[core.IDAndVersion]bool)

	var mark func(id core.IDAndVersion)
	mark = func(id core.IDAndVersion) {
		for _, child := range g.edges[id] {
			if !affected[child] {
				affected[child] = true
				mark(child)
			}
		}
	}
	for _, id := range changed {
		mark(id)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	result := make([]core.IDAndVersion, 0, len(affected))
	for _, id := range order {
		if affected[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

// Upstream returns every table the view depends on, directly or not.
func (g *Graph) Upstream(view core.IDAndVersion) []core.IDAndVersion {
	upstream := make(map[core.IDAndVersion]bool)

	var mark func(id core.IDAndVersion)
	mark = func(id core.IDAndVersion) {
		for _, parent := range g.parents[id] {
			if !upstream[parent] {
				upstream[parent] = true
				mark(parent)
			}
		}
	}
	mark(view)

	result := make([]core.IDAndVersion, 0, len(upstream))
	for id := range upstream {
		result = append(result, id)
	}
	return sorted(result)
}

// FormatPath renders a cycle path as "syn1 -> syn2 -> syn1".
func FormatPath(path []core.IDAndVersion) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}

func (g *Graph) ids() []core.IDAndVersion {
	ids := make([]core.IDAndVersion, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return sorted(ids)
}

// sorted orders ids by id, then version, unversioned first.
func sorted(ids []core.IDAndVersion) []core.IDAndVersion {
	out := slices.Clone(ids)
	slices.SortFunc(out, compare)
	return out
}

func compare(a, b core.IDAndVersion) int {
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	if a.Versioned != b.Versioned {
		if !a.Versioned {
			return -1
		}
		return 1
	}
	switch {
	case a.Version < b.Version:
		return -1
	case a.Version > b.Version:
		return 1
	}
	return 0
}
