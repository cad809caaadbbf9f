package claude

import (
	"fmt"

	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/graph"
)

// Skipped is an inferred edge that was rejected, with the reason.
type Skipped struct {
	Edge   Edge
	Reason string
}

// FilterEdges keeps the inferred edges that are safe to add to a project
// with the given items and existing dependencies. Edges with unknown ids,
// self edges, unknown types and duplicates of existing edges are dropped.
// The rest are added greedily in order, skipping any that would close a
// cycle.
func FilterEdges(edges []Edge, items []cpm.WorkItem, existing []cpm.Dependency) (accepted []Edge, skipped []Skipped) {
	known := make(map[string]bool, len(items))
	ids := make([]string, len(items))
	for i, wi := range items {
		known[wi.ID] = true
		ids[i] = wi.ID
	}
	have := make(map[cpm.Dependency]bool, len(existing))
	for _, d := range existing {
		if d.DependencyType == "" {
			d.DependencyType = cpm.FinishToStart
		}
		have[d] = true
	}

	current := append([]cpm.Dependency(nil), existing...)
	for _, e := range edges {
		reason := ""
		switch {
		case !known[e.PredecessorID]:
			reason = fmt.Sprintf("unknown predecessorId %s", e.PredecessorID)
		case !known[e.SuccessorID]:
			reason = fmt.Sprintf("unknown successorId %s", e.SuccessorID)
		case e.PredecessorID == e.SuccessorID:
			reason = fmt.Sprintf("self dependency %s", e.PredecessorID)
		}
		if reason == "" {
			if _, err := cpm.ParseDependencyType(e.DependencyType); err != nil {
				reason = err.Error()
			}
		}
		dep := e.Dependency()
		if reason == "" && have[dep] {
			reason = "already present"
		}
		if reason == "" && closesCycle(ids, current, dep) {
			reason = fmt.Sprintf("would create cycle: %s -> %s", e.PredecessorID, e.SuccessorID)
		}
		if reason != "" {
			skipped = append(skipped, Skipped{Edge: e, Reason: reason})
			continue
		}
		have[dep] = true
		current = append(current, dep)
		accepted = append(accepted, e)
	}
	return accepted, skipped
}

func closesCycle(ids []string, deps []cpm.Dependency, candidate cpm.Dependency) bool {
	g, err := graph.New(ids)
	if err != nil {
		return false
	}
	for _, d := range deps {
		g.AddEdge(d.PredecessorID, d.SuccessorID, graph.FinishToStart, 0)
	}
	g.AddEdge(candidate.PredecessorID, candidate.SuccessorID, graph.FinishToStart, 0)
	return g.DetectCycle() != nil
}
