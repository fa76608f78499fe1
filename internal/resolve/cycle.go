package resolve

import (
	"fmt"
	"sort"
	"strings"
)

// RecursionGroup is a set of routines that call each other, directly or
// through a chain of calls. Recursion is supported; groups are reported so
// tooling can show them.
type RecursionGroup struct {
	Routines []string `json:"routines"`
	Path     []string `json:"path"`
	Message  string   `json:"message"`
}

// callGraph maps a routine to the routines it calls.
type callGraph map[string][]string

// recursionGroups finds every strongly connected component of graph with
// more than one routine or a self-call. Output is sorted for stable reports.
func recursionGroups(graph callGraph) []RecursionGroup {
	var groups []RecursionGroup
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		sort.Strings(scc)
		path := cyclePath(scc, graph)
		msg := fmt.Sprintf("recursive routines: %s", strings.Join(path, " -> "))
		if len(scc) == 1 {
			msg = fmt.Sprintf("self-recursive routine: %s", scc[0])
		}
		groups = append(groups, RecursionGroup{Routines: scc, Path: path, Message: msg})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Routines[0] < groups[j].Routines[0] })
	return groups
}

func hasSelfLoop(node string, graph callGraph) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of graph. Nodes are
// visited in sorted order so the result does not depend on map iteration.
func tarjanSCC(graph callGraph) [][]string {
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

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its first member until it returns
// to the start.
func cyclePath(scc []string, graph callGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		next := ""
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
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
