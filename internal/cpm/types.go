package cpm

import "github.com/joshharrison/ganttloom/internal/dates"

// Status is a work item's lifecycle state. Only not_started, in_progress and
// completed change how an item is scheduled; any other value is scheduled
// like blocked.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// DependencyType is one of the four precedence relations.
type DependencyType string

const (
	FinishToStart  DependencyType = "finish_to_start"
	StartToStart   DependencyType = "start_to_start"
	FinishToFinish DependencyType = "finish_to_finish"
	StartToFinish  DependencyType = "start_to_finish"
)

// Mode selects which part of the graph is scheduled.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeCascade Mode = "cascade"
)

// WarningType classifies an advisory diagnostic.
type WarningType string

const (
	WarningNoDuration          WarningType = "no_duration"
	WarningStartBeforeViolated WarningType = "start_before_violated"
	WarningAlreadyCompleted    WarningType = "already_completed"
)

// WorkItem is a schedulable node. Optional fields are nil when absent.
type WorkItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title,omitempty"`
	Status          Status      `json:"status"`
	StartDate       *dates.Date `json:"startDate,omitempty"`
	EndDate         *dates.Date `json:"endDate,omitempty"`
	ActualStartDate *dates.Date `json:"actualStartDate,omitempty"`
	ActualEndDate   *dates.Date `json:"actualEndDate,omitempty"`
	DurationDays    *int        `json:"durationDays,omitempty"`
	StartAfter      *dates.Date `json:"startAfter,omitempty"`  // hard lower bound on start
	StartBefore     *dates.Date `json:"startBefore,omitempty"` // soft upper bound on start
}

// Duration returns the item's duration, zero when unset.
func (w *WorkItem) Duration() int {
	if w.DurationDays == nil {
		return 0
	}
	return *w.DurationDays
}

// Dependency is a typed edge from predecessor to successor.
type Dependency struct {
	PredecessorID  string         `json:"predecessorId"`
	SuccessorID    string         `json:"successorId"`
	DependencyType DependencyType `json:"dependencyType"`
	LeadLagDays    int            `json:"leadLagDays"`
}

// ScheduleParams is the complete input of one scheduling call.
type ScheduleParams struct {
	Mode             Mode         `json:"mode"`
	WorkItems        []WorkItem   `json:"workItems"`
	Dependencies     []Dependency `json:"dependencies"`
	Today            dates.Date   `json:"today"`
	AnchorWorkItemID string       `json:"anchorWorkItemId,omitempty"`
}

// ScheduledItem holds the computed dates for one work item.
type ScheduledItem struct {
	WorkItemID         string      `json:"workItemId"`
	PreviousStartDate  *dates.Date `json:"previousStartDate"`
	PreviousEndDate    *dates.Date `json:"previousEndDate"`
	ScheduledStartDate dates.Date  `json:"scheduledStartDate"` // ES
	ScheduledEndDate   dates.Date  `json:"scheduledEndDate"`   // EF
	LatestStartDate    dates.Date  `json:"latestStartDate"`    // LS
	LatestFinishDate   dates.Date  `json:"latestFinishDate"`   // LF
	TotalFloat         int         `json:"totalFloat"`
	IsCritical         bool        `json:"isCritical"`
	IsLate             bool        `json:"isLate"`
}

// Changed reports whether the computed dates differ from the stored ones.
func (s *ScheduledItem) Changed() bool {
	return !dates.Equal(s.PreviousStartDate, &s.ScheduledStartDate) ||
		!dates.Equal(s.PreviousEndDate, &s.ScheduledEndDate)
}

// Warning is an advisory diagnostic that never alters the schedule.
type Warning struct {
	WorkItemID string      `json:"workItemId"`
	Type       WarningType `json:"type"`
	Message    string      `json:"message"`
}

// ScheduleResult is the output of Schedule. When CycleNodes is set every
// other slice is empty.
type ScheduleResult struct {
	ScheduledItems []ScheduledItem `json:"scheduledItems"`
	CriticalPath   []string        `json:"criticalPath"` // topologically ordered
	Warnings       []Warning       `json:"warnings"`
	CycleNodes     []string        `json:"cycleNodes,omitempty"`
}

// HasCycle reports whether scheduling stopped on a dependency cycle.
func (r *ScheduleResult) HasCycle() bool {
	return len(r.CycleNodes) > 0
}

// Item looks up the scheduled item for a work item id.
func (r *ScheduleResult) Item(id string) (*ScheduledItem, bool) {
	for i := range r.ScheduledItems {
		if r.ScheduledItems[i].WorkItemID == id {
			return &r.ScheduledItems[i], true
		}
	}
	return nil, false
}

// ProjectFinish returns the latest scheduled end date, or false when nothing
// was scheduled.
func (r *ScheduleResult) ProjectFinish() (dates.Date, bool) {
	if len(r.ScheduledItems) == 0 {
		return 0, false
	}
	finish := r.ScheduledItems[0].ScheduledEndDate
	for _, s := range r.ScheduledItems[1:] {
		finish = dates.Max(finish, s.ScheduledEndDate)
	}
	return finish, true
}

// Changed returns the items whose computed dates differ from their stored
// dates, in result order.
func (r *ScheduleResult) Changed() []ScheduledItem {
	var changed []ScheduledItem
	for _, s := range r.ScheduledItems {
		if s.Changed() {
			changed = append(changed, s)
		}
	}
	return changed
}
