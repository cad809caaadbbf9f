// Package cpm schedules work items with a critical path method forward and
// backward pass over their dependency graph.
//
// Schedule is a pure function: it never mutates its input and keeps no state
// between calls, so concurrent callers need no locking.
package cpm

import (
	"fmt"
	"math"

	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/graph"
)

// Schedule computes earliest and latest dates, float and the critical path
// for the work items in scope. A dependency cycle is reported through
// ScheduleResult.CycleNodes rather than as an error; errors are returned only
// for invalid params.
func Schedule(params ScheduleParams) (*ScheduleResult, error) {
	mode, err := resolveMode(params)
	if err != nil {
		return nil, err
	}

	g, err := buildGraph(params.WorkItems, params.Dependencies)
	if err != nil {
		return nil, err
	}

	// orig maps a handle in the scheduled graph to its index in WorkItems.
	orig := make([]int, g.Len())
	for i := range orig {
		orig[i] = i
	}

	if mode == ModeCascade {
		anchor, ok := g.Index(params.AnchorWorkItemID)
		if !ok {
			return emptyResult(), nil
		}
		g, orig = g.Induced(g.Reachable(anchor))
	}

	if cycle := g.DetectCycle(); cycle != nil {
		res := emptyResult()
		res.CycleNodes = g.NodeIDs(cycle)
		return res, nil
	}

	order, err := g.TopoSort()
	if err != nil {
		// DetectCycle found no cycle, so this cannot happen.
		return nil, fmt.Errorf("topological sort: %w", err)
	}

	items := make([]*WorkItem, g.Len())
	for i, wi := range orig {
		items[i] = &params.WorkItems[wi]
	}

	a := newAnalysis(g, items, order, params.Today)
	a.forward()
	a.backward()
	a.resolveFloat()
	a.collectWarnings()
	return a.result(), nil
}

func resolveMode(params ScheduleParams) (Mode, error) {
	switch params.Mode {
	case "", ModeFull:
		return ModeFull, nil
	case ModeCascade:
		if params.AnchorWorkItemID == "" {
			return "", &ValidationError{Err: ErrAnchorRequired}
		}
		return ModeCascade, nil
	}
	return "", &ValidationError{Field: "mode", Err: fmt.Errorf("%w %q", ErrUnknownMode, params.Mode)}
}

// buildGraph indexes the work items and adds every dependency whose
// endpoints are both known. Dangling edges are dropped.
func buildGraph(items []WorkItem, deps []Dependency) (*graph.Graph, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	g, err := graph.New(ids)
	if err != nil {
		return nil, &ValidationError{Field: "workItems", Err: fmt.Errorf("%w: %v", ErrDuplicateWorkItem, err)}
	}
	for i := range items {
		if dur := items[i].DurationDays; dur != nil {
			field := fmt.Sprintf("workItems[%d].durationDays", i)
			if *dur < 0 {
				return nil, &ValidationError{Field: field, Err: ErrNegativeDuration}
			}
			if *dur > math.MaxInt32 {
				return nil, &ValidationError{Field: field, Err: fmt.Errorf("%w: %d", ErrDayCountOutOfRange, *dur)}
			}
		}
	}

	for i, d := range deps {
		rel, err := ParseDependencyType(d.DependencyType)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("dependencies[%d].dependencyType", i), Err: err}
		}
		if d.LeadLagDays > math.MaxInt32 || d.LeadLagDays < math.MinInt32 {
			return nil, &ValidationError{
				Field: fmt.Sprintf("dependencies[%d].leadLagDays", i),
				Err:   fmt.Errorf("%w: %d", ErrDayCountOutOfRange, d.LeadLagDays),
			}
		}
		g.AddEdge(d.PredecessorID, d.SuccessorID, rel, d.LeadLagDays)
	}
	return g, nil
}

// ParseDependencyType maps a dependency type onto its graph relation. The
// empty type means finish_to_start.
func ParseDependencyType(t DependencyType) (graph.Relation, error) {
	switch t {
	case FinishToStart, "":
		return graph.FinishToStart, nil
	case StartToStart:
		return graph.StartToStart, nil
	case FinishToFinish:
		return graph.FinishToFinish, nil
	case StartToFinish:
		return graph.StartToFinish, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownDependencyType, t)
}

func emptyResult() *ScheduleResult {
	return &ScheduleResult{
		ScheduledItems: []ScheduledItem{},
		CriticalPath:   []string{},
		Warnings:       []Warning{},
	}
}

// analysis holds the per-call working state, indexed by graph handle.
type analysis struct {
	g     *graph.Graph
	items []*WorkItem
	order []int
	today dates.Date

	es, ef []dates.Date
	ls, lf []dates.Date
	float  []int
	late   []bool

	warnings []Warning
}

func newAnalysis(g *graph.Graph, items []*WorkItem, order []int, today dates.Date) *analysis {
	n := g.Len()
	return &analysis{
		g:     g,
		items: items,
		order: order,
		today: today,
		es:    make([]dates.Date, n),
		ef:    make([]dates.Date, n),
		ls:    make([]dates.Date, n),
		lf:    make([]dates.Date, n),
		float: make([]int, n),
		late:  make([]bool, n),
	}
}

// result assembles the output. Scheduled items follow the input order of the
// work items; the critical path follows the topological order.
func (a *analysis) result() *ScheduleResult {
	res := emptyResult()
	res.ScheduledItems = make([]ScheduledItem, a.g.Len())
	for n, item := range a.items {
		res.ScheduledItems[n] = ScheduledItem{
			WorkItemID:         item.ID,
			PreviousStartDate:  copyDate(item.StartDate),
			PreviousEndDate:    copyDate(item.EndDate),
			ScheduledStartDate: a.es[n],
			ScheduledEndDate:   a.ef[n],
			LatestStartDate:    a.ls[n],
			LatestFinishDate:   a.lf[n],
			TotalFloat:         a.float[n],
			IsCritical:         a.float[n] == 0,
			IsLate:             a.late[n],
		}
	}

	for _, n := range a.order {
		if a.float[n] == 0 {
			res.CriticalPath = append(res.CriticalPath, a.g.IDs[n])
		}
	}
	res.Warnings = append(res.Warnings, a.warnings...)
	return res
}

// copyDate keeps the result from aliasing the caller's work items.
func copyDate(d *dates.Date) *dates.Date {
	if d == nil {
		return nil
	}
	return dates.Ptr(*d)
}
