package cpm

import (
	"fmt"

	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/graph"
)

// backward computes LS and LF in reverse topological order. Sinks finish at
// the project finish; every other node finishes by the tightest bound its
// outgoing edges allow.
func (a *analysis) backward() {
	finish, ok := a.projectFinish()
	if !ok {
		return
	}

	for i := len(a.order) - 1; i >= 0; i-- {
		n := a.order[i]
		dur := a.items[n].Duration()

		lf := finish
		for j, ei := range a.g.Out[n] {
			e := a.g.Edges[ei]
			c := predecessorFinish(e, a.ls[e.To], a.lf[e.To], dur)
			if j == 0 || c.Before(lf) {
				lf = c
			}
		}
		a.lf[n] = lf
		a.ls[n] = lf.AddDays(-dur)
	}
}

// projectFinish is the latest EF over all sink nodes.
func (a *analysis) projectFinish() (dates.Date, bool) {
	leaves := a.g.Leaves()
	if len(leaves) == 0 {
		return 0, false
	}
	finish := a.ef[leaves[0]]
	for _, n := range leaves[1:] {
		finish = dates.Max(finish, a.ef[n])
	}
	return finish, true
}

// predecessorFinish mirrors successorStart: it solves the edge's constraint
// for the predecessor's LF given the successor's LS/LF.
func predecessorFinish(e graph.Edge, succLS, succLF dates.Date, dur int) dates.Date {
	switch e.Relation {
	case graph.FinishToStart:
		return succLS.AddDays(-e.Lag)
	case graph.StartToStart:
		return succLS.AddDays(dur - e.Lag)
	case graph.FinishToFinish:
		return succLF.AddDays(-e.Lag)
	case graph.StartToFinish:
		return succLF.AddDays(dur - e.Lag)
	}
	panic(fmt.Sprintf("cpm: unhandled relation %v", e.Relation))
}

// resolveFloat derives total float, clamped at zero because conflicting hard
// constraints can push LS before ES.
func (a *analysis) resolveFloat() {
	for n := range a.float {
		a.float[n] = max(0, a.ls[n].Sub(a.es[n]))
	}
}
