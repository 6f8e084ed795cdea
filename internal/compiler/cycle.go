package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/cellgraph/internal/ir"
)

// Cycle is a set of compute cells that depend on each other.
//
// Cycles are errors for cell graphs: a change reaching any member keeps
// propagating forever unless the reactor runs with a step limit.
type Cycle struct {
	Path    []string `json:"path"` // ["a", "b", "a"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds dependency cycles among the computes of a graph.
//
// It builds a dependency -> dependent graph over cell names and runs
// Tarjan's algorithm. Every strongly connected component with more than one
// member, or a single member that depends on itself, is a cycle. Results
// follow declaration order so output is stable.
func AnalyzeCycles(spec *ir.GraphSpec) []Cycle {
	if len(spec.Computes) == 0 {
		return nil
	}

	graph, nodes := buildDependencyGraph(spec)
	sccs := tarjanSCC(graph, nodes)

	rank := make(map[string]int, len(nodes))
	for i, n := range nodes {
		rank[n] = i
	}

	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		slices.SortFunc(scc, func(a, b string) int { return rank[a] - rank[b] })
		cycles = append(cycles, sccToCycle(scc, graph))
	}

	slices.SortFunc(cycles, func(a, b Cycle) int { return rank[a.Path[0]] - rank[b.Path[0]] })
	return cycles
}

// dependencyGraph maps a cell name to the computes that read it.
type dependencyGraph map[string][]string

func buildDependencyGraph(spec *ir.GraphSpec) (dependencyGraph, []string) {
	graph := make(dependencyGraph)
	var nodes []string

	inputs := make(map[string]bool, len(spec.Inputs))
	for _, in := range spec.Inputs {
		inputs[in.Name] = true
	}

	for _, c := range spec.Computes {
		// a compute shadowed by an input name is a duplicate, not a node
		if inputs[c.Name] {
			continue
		}
		if _, seen := graph[c.Name]; !seen {
			graph[c.Name] = []string{}
			nodes = append(nodes, c.Name)
		}
	}
	for _, c := range spec.Computes {
		if inputs[c.Name] {
			continue
		}
		for _, dep := range c.Deps {
			// inputs cannot take part in a cycle
			if _, ok := graph[dep]; !ok {
				continue
			}
			graph[dep] = append(graph[dep], c.Name)
		}
	}
	return graph, nodes
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph dependencyGraph, nodes []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) Cycle {
	if len(scc) == 1 {
		return Cycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("compute %q depends on itself", scc[0]),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath walks from the first SCC member along edges that stay
// inside the SCC, preferring unvisited members, until it returns to the
// start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start

	for len(path) <= len(scc) {
		next := ""
		for _, w := range graph[current] {
			if !members[w] {
				continue
			}
			if w == start && len(path) > 1 {
				next = w
				break
			}
			if !visited[w] {
				next = w
				break
			}
		}
		if next == "" {
			// every in-SCC successor already visited; close the loop
			break
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}

	return append(path, start)
}
