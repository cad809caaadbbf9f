package cpm

import (
	"fmt"

	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/graph"
)

// forward computes ES and EF in topological order.
//
// Precedence per node:
//  1. actual dates win outright and clear isLate;
//  2. otherwise ES comes from the root rule or the max over incoming edges,
//     raised to startAfter, and a not_started item is floored at today;
//  3. an in_progress item whose EF falls before today is floored at today.
func (a *analysis) forward() {
	for _, n := range a.order {
		item := a.items[n]
		dur := item.Duration()
		actual := false

		var es dates.Date
		if item.ActualStartDate != nil {
			es = *item.ActualStartDate
			actual = true
		} else {
			es = a.dependencyStart(n, dur)
			if item.StartAfter != nil {
				es = dates.Max(es, *item.StartAfter)
			}
			if item.Status == StatusNotStarted && es.Before(a.today) {
				es = a.today
				a.late[n] = true
			}
		}

		ef := es.AddDays(dur)
		if item.ActualEndDate != nil {
			ef = *item.ActualEndDate
			actual = true
		} else if item.Status == StatusInProgress && ef.Before(a.today) {
			ef = a.today
			a.late[n] = true
		}

		if actual {
			a.late[n] = false
		}
		a.es[n], a.ef[n] = es, ef
	}
}

// dependencyStart returns the ES implied by the node's predecessors, or by
// the root rule when it has none.
func (a *analysis) dependencyStart(n, dur int) dates.Date {
	in := a.g.In[n]
	if len(in) == 0 {
		item := a.items[n]
		if item.Status != StatusCompleted && item.StartDate != nil {
			return *item.StartDate
		}
		return a.today
	}

	var es dates.Date
	for i, ei := range in {
		e := a.g.Edges[ei]
		c := successorStart(e, a.es[e.From], a.ef[e.From], dur)
		if i == 0 || c.After(es) {
			es = c
		}
	}
	return es
}

// successorStart solves the edge's constraint for the successor's ES.
func successorStart(e graph.Edge, predES, predEF dates.Date, dur int) dates.Date {
	switch e.Relation {
	case graph.FinishToStart:
		return predEF.AddDays(e.Lag)
	case graph.StartToStart:
		return predES.AddDays(e.Lag)
	case graph.FinishToFinish:
		return predEF.AddDays(e.Lag - dur)
	case graph.StartToFinish:
		return predES.AddDays(e.Lag - dur)
	}
	panic(fmt.Sprintf("cpm: unhandled relation %v", e.Relation))
}
