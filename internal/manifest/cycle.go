package manifest

import (
	"fmt"
	"slices"
	"strings"
)

// dependencyGraph maps a module key to the fired modules that read one of
// its produced paths, in firing order.
type dependencyGraph map[string][]string

// buildDependencyGraph adds an edge producer → consumer whenever consumer
// requires a path the producer writes, or an ancestor or descendant of one.
func buildDependencyGraph(m *Manifest) dependencyGraph {
	graph := make(dependencyGraph, len(m.FiringOrder))
	for _, from := range m.FiringOrder {
		graph[from] = []string{}
		for _, to := range m.FiringOrder {
			if feeds(m.Modules[from].Produces, m.Modules[to].Requires) {
				graph[from] = append(graph[from], to)
			}
		}
	}
	return graph
}

func feeds(produces, requires []string) bool {
	for _, p := range produces {
		for _, r := range requires {
			if p == r || strings.HasPrefix(r, p+".") || strings.HasPrefix(p, r+".") {
				return true
			}
		}
	}
	return false
}

// lintCycles reports every strongly connected set of modules. With a single
// pass over a linear firing order, at least one module in each cycle reads a
// value the previous pass left behind.
func (m *Manifest) lintCycles() []ValidationError {
	graph := buildDependencyGraph(m)

	var warns []ValidationError
	for _, scc := range tarjanSCC(graph, m.FiringOrder) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		path := cyclePath(scc, graph)
		msg := "module reads its own output: " + strings.Join(path, " → ")
		if len(scc) > 1 {
			msg = "dependency cycle: " + strings.Join(path, " → ")
		}
		warns = append(warns, ValidationError{
			Field:   "modules." + path[0],
			Message: fmt.Sprintf("%s; a single pass cannot satisfy it", msg),
			Code:    WarnDependencyCycle,
		})
	}
	return warns
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, visiting roots in order so
// the result is deterministic. Each component is returned in firing order.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	position := make(map[string]int, len(order))
	for i, key := range order {
		position[key] = i
	}

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
			slices.SortFunc(scc, func(a, b string) int { return position[a] - position[b] })
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int { return position[a[0]] - position[b[0]] })
	return sccs
}

// cyclePath returns the shortest walk inside scc from its first member back
// to itself. A self-loop yields [key, key].
func cyclePath(scc []string, graph dependencyGraph) []string {
	start := scc[0]
	if len(scc) == 1 {
		return []string{start, start}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range graph[current] {
			if neighbor == start {
				path := []string{start}
				for n := current; n != start; n = parent[n] {
					path = append(path, n)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if _, seen := parent[neighbor]; seen || !members[neighbor] {
				continue
			}
			parent[neighbor] = current
			queue = append(queue, neighbor)
		}
	}
	return []string{start, start}
}
