package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
)

// dependencyGraph maps a property name to the sibling names it depends on.
type dependencyGraph map[string][]string

func buildDependencyGraph(props []ir.Property) (dependencyGraph, []string) {
	graph := make(dependencyGraph, len(props))
	order := make([]string, 0, len(props))
	for _, p := range props {
		graph[p.Name] = append([]string{}, p.Dependencies...)
		order = append(order, p.Name)
	}
	return graph, order
}

// DependencyCycles returns every cycle formed by the dependencies of one
// property level. Each cycle is a path that starts and ends on the same
// property, e.g. ["a", "b", "a"]. Acyclic input returns nil.
func DependencyCycles(props []ir.Property) [][]string {
	graph, order := buildDependencyGraph(props)

	var cycles [][]string
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, reconstructCyclePath(scc, graph))
		}
	}
	return cycles
}

// DependencyOrder returns property names ordered so that every property
// comes after the siblings it depends on. Independent properties keep their
// declaration order. Unknown dependency names are ignored.
func DependencyOrder(props []ir.Property) ([]string, error) {
	if cycles := DependencyCycles(props); len(cycles) > 0 {
		return nil, fmt.Errorf("dependency cycle: %s", strings.Join(cycles[0], " -> "))
	}

	graph, order := buildDependencyGraph(props)
	done := make(map[string]bool, len(order))
	result := make([]string, 0, len(order))

	var visit func(string)
	visit = func(name string) {
		if done[name] {
			return
		}
		done[name] = true
		for _, dep := range graph[name] {
			if _, known := graph[dep]; known {
				visit(dep)
			}
		}
		result = append(result, name)
	}
	for _, name := range order {
		visit(name)
	}
	return result, nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so the output is deterministic.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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
			if _, known := graph[w]; !known {
				continue
			}
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
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath follows edges inside an SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
