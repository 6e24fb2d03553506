package validate

import (
	"fmt"
	"sort"
)

// Built-in rule names.
const (
	// RuleNoCycles flags directed cycles, error level.
	RuleNoCycles = "no-cycles"

	// RuleValidConnections flags edges with a dead endpoint, error level.
	RuleValidConnections = "valid-connections"

	// RuleNoOrphans flags nodes touched by zero edges, warning level.
	RuleNoOrphans = "no-orphans"

	// RuleNoDuplicateEdges flags repeated (source, target) pairs, warning
	// level.
	RuleNoDuplicateEdges = "no-duplicate-edges"
)

// noCycles runs a DFS with a recursion-stack set over the directed edge
// set; a node revisited while still on the recursion stack signals a cycle.
// O(V+E). Traversal order is sorted for deterministic reports.
func noCycles(s Snapshot) Result {
	adjacency := make(map[string][]string, len(s.Nodes))
	for _, e := range s.Edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}
	for _, targets := range adjacency {
		sort.Strings(targets)
	}

	ids := make([]string, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(ids))
	onStack := make(map[string]bool)
	var details []string

	var dfs func(id string, path []string) bool
	dfs = func(id string, path []string) bool {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, next := range adjacency[id] {
			if onStack[next] {
				details = append(details, fmt.Sprintf("cycle: %v -> %s", path, next))
				return true
			}
			if !visited[next] && dfs(next, path) {
				return true
			}
		}

		onStack[id] = false
		return false
	}

	// Start from every node to cover disconnected components.
	for _, id := range ids {
		if !visited[id] && dfs(id, nil) {
			return Result{Valid: false, Details: details}
		}
	}
	return Result{Valid: true}
}

// validConnections requires both endpoints of every edge to exist in the
// current node id set.
func validConnections(s Snapshot) Result {
	live := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		live[n.ID] = struct{}{}
	}

	var details []string
	for _, e := range s.Edges {
		if _, ok := live[e.SourceID]; !ok {
			details = append(details, fmt.Sprintf("edge %s: source %q does not exist", e.ID, e.SourceID))
		}
		if _, ok := live[e.TargetID]; !ok {
			details = append(details, fmt.Sprintf("edge %s: target %q does not exist", e.ID, e.TargetID))
		}
	}
	return Result{Valid: len(details) == 0, Details: details}
}

// noOrphans flags nodes touched by zero edges.
func noOrphans(s Snapshot) Result {
	touched := make(map[string]struct{}, len(s.Nodes))
	for _, e := range s.Edges {
		touched[e.SourceID] = struct{}{}
		touched[e.TargetID] = struct{}{}
	}

	var details []string
	for _, n := range s.Nodes {
		if _, ok := touched[n.ID]; !ok {
			details = append(details, fmt.Sprintf("node %s has no edges", n.ID))
		}
	}
	return Result{Valid: len(details) == 0, Details: details}
}

// noDuplicateEdges flags more than one edge sharing the same ordered
// (source, target) pair.
func noDuplicateEdges(s Snapshot) Result {
	seen := make(map[[2]string][]string, len(s.Edges))
	for _, e := range s.Edges {
		key := [2]string{e.SourceID, e.TargetID}
		seen[key] = append(seen[key], e.ID)
	}

	keys := make([][2]string, 0, len(seen))
	for k, ids := range seen {
		if len(ids) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var details []string
	for _, k := range keys {
		details = append(details, fmt.Sprintf("%d edges connect %s -> %s", len(seen[k]), k[0], k[1]))
	}
	return Result{Valid: len(details) == 0, Details: details}
}
