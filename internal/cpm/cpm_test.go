package cpm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joshharrison/ganttloom/internal/dates"
)

func d(s string) dates.Date   { return dates.MustParse(s) }
func dp(s string) *dates.Date { return dates.Ptr(dates.MustParse(s)) }
func days(n int) *int         { return &n }

func item(id string, dur int) WorkItem {
	return WorkItem{ID: id, Status: StatusNotStarted, DurationDays: days(dur)}
}

func fs(pred, succ string, lag int) Dependency {
	return Dependency{PredecessorID: pred, SuccessorID: succ, DependencyType: FinishToStart, LeadLagDays: lag}
}

func mustSchedule(t *testing.T, params ScheduleParams) *ScheduleResult {
	t.Helper()
	result, err := Schedule(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func mustItem(t *testing.T, result *ScheduleResult, id string) *ScheduledItem {
	t.Helper()
	si, ok := result.Item(id)
	if !ok {
		t.Fatalf("item %s missing from result", id)
	}
	return si
}

func TestSchedule_SingleItem(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		Mode:      ModeFull,
		WorkItems: []WorkItem{item("a", 5)},
		Today:     d("2026-03-01"),
	})

	assertSchedule(t, mustItem(t, result, "a"), "2026-03-01", "2026-03-06", "2026-03-01", "2026-03-06", 0, true)
	if len(result.CriticalPath) != 1 || result.CriticalPath[0] != "a" {
		t.Errorf("expected critical path [a], got %v", result.CriticalPath)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
}

func TestSchedule_FinishToStartWithLag(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 5), item("b", 3)},
		Dependencies: []Dependency{fs("a", "b", 2)},
		Today:        d("2026-01-01"),
	})

	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-06", "2026-01-01", "2026-01-06", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-08", "2026-01-11", "2026-01-08", "2026-01-11", 0, true)
	assertPath(t, result, "a", "b")
}

func TestSchedule_Diamond(t *testing.T) {
	// A(10) -> C(1)
	// B(1)  -> C(1)
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 10), item("b", 1), item("c", 1)},
		Dependencies: []Dependency{fs("a", "c", 0), fs("b", "c", 0)},
		Today:        d("2026-01-01"),
	})

	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-11", "2026-01-01", "2026-01-11", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-01", "2026-01-02", "2026-01-10", "2026-01-11", 9, false)
	assertSchedule(t, mustItem(t, result, "c"), "2026-01-11", "2026-01-12", "2026-01-11", "2026-01-12", 0, true)
	assertPath(t, result, "a", "c")
}

func TestSchedule_Cycle(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 1), item("b", 1), item("c", 1)},
		Dependencies: []Dependency{fs("a", "b", 0), fs("b", "a", 0), fs("b", "c", 0)},
		Today:        d("2026-01-01"),
	})

	if !result.HasCycle() {
		t.Fatal("expected cycle to be reported")
	}
	if diff := cmp.Diff([]string{"a", "b"}, result.CycleNodes); diff != "" {
		t.Errorf("cycle nodes mismatch (-want +got):\n%s", diff)
	}
	if len(result.ScheduledItems) != 0 || len(result.CriticalPath) != 0 || len(result.Warnings) != 0 {
		t.Errorf("expected empty result on cycle, got %+v", result)
	}
	if result.ScheduledItems == nil || result.CriticalPath == nil || result.Warnings == nil {
		t.Error("empty result slices should be non-nil")
	}
}

func TestSchedule_SelfDependencyIsCycle(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 1)},
		Dependencies: []Dependency{fs("a", "a", 0)},
		Today:        d("2026-01-01"),
	})
	if diff := cmp.Diff([]string{"a"}, result.CycleNodes); diff != "" {
		t.Errorf("cycle nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedule_NotStartedTodayFloor(t *testing.T) {
	a := item("a", 5)
	a.StartDate = dp("2025-12-01")
	result := mustSchedule(t, ScheduleParams{
		WorkItems: []WorkItem{a},
		Today:     d("2026-01-10"),
	})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2026-01-10") || si.ScheduledEndDate != d("2026-01-15") {
		t.Errorf("expected 2026-01-10..2026-01-15, got %s..%s", si.ScheduledStartDate, si.ScheduledEndDate)
	}
	if !si.IsLate {
		t.Error("expected item to be late")
	}
	if !dates.Equal(si.PreviousStartDate, dp("2025-12-01")) {
		t.Errorf("expected previous start to echo stored date, got %v", si.PreviousStartDate)
	}
}

func TestSchedule_RootUsesStoredStartDate(t *testing.T) {
	a := item("a", 2)
	a.StartDate = dp("2026-02-01")
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2026-02-01") || si.IsLate {
		t.Errorf("expected on-time start 2026-02-01, got %s (late=%v)", si.ScheduledStartDate, si.IsLate)
	}
}

func TestSchedule_StartToStart(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems: []WorkItem{item("a", 4), item("b", 2)},
		Dependencies: []Dependency{
			{PredecessorID: "a", SuccessorID: "b", DependencyType: StartToStart, LeadLagDays: 1},
		},
		Today: d("2026-01-01"),
	})
	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-05", "2026-01-01", "2026-01-05", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-02", "2026-01-04", "2026-01-02", "2026-01-04", 0, true)
}

func TestSchedule_FinishToFinish(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems: []WorkItem{item("a", 5), item("b", 2)},
		Dependencies: []Dependency{
			{PredecessorID: "a", SuccessorID: "b", DependencyType: FinishToFinish},
		},
		Today: d("2026-01-01"),
	})
	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-06", "2026-01-01", "2026-01-06", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-04", "2026-01-06", "2026-01-04", "2026-01-06", 0, true)
}

func TestSchedule_StartToFinish(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems: []WorkItem{item("a", 3), item("b", 2)},
		Dependencies: []Dependency{
			{PredecessorID: "a", SuccessorID: "b", DependencyType: StartToFinish, LeadLagDays: 4},
		},
		Today: d("2026-01-01"),
	})
	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-04", "2026-01-01", "2026-01-04", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-03", "2026-01-05", "2026-01-03", "2026-01-05", 0, true)
}

func TestSchedule_FinishToFinishPulledBeforeTodayIsLate(t *testing.T) {
	// B must finish with A, which would put B's start before today.
	result := mustSchedule(t, ScheduleParams{
		WorkItems: []WorkItem{item("a", 1), item("b", 5)},
		Dependencies: []Dependency{
			{PredecessorID: "a", SuccessorID: "b", DependencyType: FinishToFinish},
		},
		Today: d("2026-01-01"),
	})
	si := mustItem(t, result, "b")
	if si.ScheduledStartDate != d("2026-01-01") || !si.IsLate {
		t.Errorf("expected b floored to today and late, got %s (late=%v)", si.ScheduledStartDate, si.IsLate)
	}
}

func TestSchedule_LeadTime(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 5), item("b", 2)},
		Dependencies: []Dependency{fs("a", "b", -2)},
		Today:        d("2026-01-01"),
	})
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-04", "2026-01-06", "2026-01-04", "2026-01-06", 0, true)
}

func TestSchedule_StartAfterAndStartBefore(t *testing.T) {
	b := item("b", 3)
	b.StartAfter = dp("2026-01-10")
	b.StartBefore = dp("2026-01-05")
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 2), b},
		Dependencies: []Dependency{fs("a", "b", 0)},
		Today:        d("2026-01-01"),
	})

	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-03", "2026-01-08", "2026-01-10", 7, false)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-10", "2026-01-13", "2026-01-10", "2026-01-13", 0, true)

	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	w := result.Warnings[0]
	if w.WorkItemID != "b" || w.Type != WarningStartBeforeViolated {
		t.Errorf("unexpected warning %+v", w)
	}
}

func TestSchedule_ActualDatesWin(t *testing.T) {
	b := WorkItem{
		ID:              "b",
		Status:          StatusCompleted,
		DurationDays:    days(10),
		ActualStartDate: dp("2025-12-01"),
		ActualEndDate:   dp("2025-12-20"),
		StartAfter:      dp("2026-06-01"),
	}
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 30), b},
		Dependencies: []Dependency{fs("a", "b", 0)},
		Today:        d("2026-01-10"),
	})

	si := mustItem(t, result, "b")
	if si.ScheduledStartDate != d("2025-12-01") || si.ScheduledEndDate != d("2025-12-20") {
		t.Errorf("expected actual dates, got %s..%s", si.ScheduledStartDate, si.ScheduledEndDate)
	}
	if si.IsLate {
		t.Error("items with actual dates are never late")
	}
	if si.TotalFloat < 0 {
		t.Errorf("float must not be negative, got %d", si.TotalFloat)
	}
}

func TestSchedule_ActualStartOnlyInProgress(t *testing.T) {
	a := WorkItem{
		ID:              "a",
		Status:          StatusInProgress,
		DurationDays:    days(5),
		ActualStartDate: dp("2025-12-01"),
	}
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2025-12-01") {
		t.Errorf("expected actual start, got %s", si.ScheduledStartDate)
	}
	if si.ScheduledEndDate != d("2026-01-10") {
		t.Errorf("expected end clamped to today, got %s", si.ScheduledEndDate)
	}
	if si.IsLate {
		t.Error("items with actual dates are never late")
	}
}

func TestSchedule_ActualEndOnly(t *testing.T) {
	a := item("a", 5)
	a.Status = StatusInProgress
	a.StartDate = dp("2026-01-02")
	a.ActualEndDate = dp("2026-01-04")
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2026-01-02") || si.ScheduledEndDate != d("2026-01-04") {
		t.Errorf("expected 2026-01-02..2026-01-04, got %s..%s", si.ScheduledStartDate, si.ScheduledEndDate)
	}
	if si.IsLate {
		t.Error("items with actual dates are never late")
	}
}

func TestSchedule_InProgressEndFloor(t *testing.T) {
	a := item("a", 5)
	a.Status = StatusInProgress
	a.StartDate = dp("2025-12-01")
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2025-12-01") {
		t.Errorf("in-progress start should not be floored, got %s", si.ScheduledStartDate)
	}
	if si.ScheduledEndDate != d("2026-01-10") || !si.IsLate {
		t.Errorf("expected end clamped to today and late, got %s (late=%v)", si.ScheduledEndDate, si.IsLate)
	}
}

func TestSchedule_InProgressOnTime(t *testing.T) {
	a := item("a", 5)
	a.Status = StatusInProgress
	a.StartDate = dp("2026-01-08")
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledEndDate != d("2026-01-13") || si.IsLate {
		t.Errorf("expected on-time end 2026-01-13, got %s (late=%v)", si.ScheduledEndDate, si.IsLate)
	}
}

func TestSchedule_CompletedRoot(t *testing.T) {
	a := item("a", 3)
	a.Status = StatusCompleted
	a.StartDate = dp("2025-12-01")
	a.EndDate = dp("2025-12-04")
	result := mustSchedule(t, ScheduleParams{WorkItems: []WorkItem{a}, Today: d("2026-01-10")})

	si := mustItem(t, result, "a")
	if si.ScheduledStartDate != d("2026-01-10") || si.IsLate {
		t.Errorf("expected completed root at today and not late, got %s (late=%v)", si.ScheduledStartDate, si.IsLate)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Type != WarningAlreadyCompleted {
		t.Errorf("expected already_completed warning, got %v", result.Warnings)
	}
	if !si.Changed() || len(result.Changed()) != 1 {
		t.Error("expected item to be reported as changed")
	}
}

func TestSchedule_NoDurationMilestone(t *testing.T) {
	m := WorkItem{ID: "m", Status: StatusNotStarted}
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 4), m},
		Dependencies: []Dependency{fs("a", "m", 0)},
		Today:        d("2026-01-01"),
	})

	assertSchedule(t, mustItem(t, result, "m"), "2026-01-05", "2026-01-05", "2026-01-05", "2026-01-05", 0, true)
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	if w := result.Warnings[0]; w.WorkItemID != "m" || w.Type != WarningNoDuration {
		t.Errorf("unexpected warning %+v", w)
	}
}

func TestSchedule_DanglingDependencyDropped(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 2)},
		Dependencies: []Dependency{fs("ghost", "a", 10), fs("a", "ghost", 0)},
		Today:        d("2026-01-01"),
	})
	assertSchedule(t, mustItem(t, result, "a"), "2026-01-01", "2026-01-03", "2026-01-01", "2026-01-03", 0, true)
}

func TestSchedule_ItemsKeepInputOrder(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("c", 1), item("b", 1), item("a", 1)},
		Dependencies: []Dependency{fs("a", "b", 0), fs("b", "c", 0)},
		Today:        d("2026-01-01"),
	})
	var got []string
	for _, si := range result.ScheduledItems {
		got = append(got, si.WorkItemID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
		t.Errorf("item order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, result.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedule_ProjectFinish(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 10), item("b", 1), item("c", 1)},
		Dependencies: []Dependency{fs("a", "c", 0), fs("b", "c", 0)},
		Today:        d("2026-01-01"),
	})
	finish, ok := result.ProjectFinish()
	if !ok || finish != d("2026-01-12") {
		t.Errorf("expected project finish 2026-01-12, got %s (%v)", finish, ok)
	}

	empty := mustSchedule(t, ScheduleParams{Today: d("2026-01-01")})
	if _, ok := empty.ProjectFinish(); ok {
		t.Error("expected no project finish for an empty schedule")
	}
}

func TestSchedule_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		params ScheduleParams
		want   error
	}{
		{
			name:   "cascade without anchor",
			params: ScheduleParams{Mode: ModeCascade, WorkItems: []WorkItem{item("a", 1)}},
			want:   ErrAnchorRequired,
		},
		{
			name:   "unknown mode",
			params: ScheduleParams{Mode: "partial"},
			want:   ErrUnknownMode,
		},
		{
			name: "unknown dependency type",
			params: ScheduleParams{
				WorkItems:    []WorkItem{item("a", 1), item("b", 1)},
				Dependencies: []Dependency{{PredecessorID: "a", SuccessorID: "b", DependencyType: "blocks"}},
			},
			want: ErrUnknownDependencyType,
		},
		{
			name:   "duplicate id",
			params: ScheduleParams{WorkItems: []WorkItem{item("a", 1), item("a", 2)}},
			want:   ErrDuplicateWorkItem,
		},
		{
			name:   "negative duration",
			params: ScheduleParams{WorkItems: []WorkItem{item("a", -3)}},
			want:   ErrNegativeDuration,
		},
		{
			name: "lag beyond the date range",
			params: ScheduleParams{
				WorkItems:    []WorkItem{item("a", 1), item("b", 1)},
				Dependencies: []Dependency{{PredecessorID: "a", SuccessorID: "b", LeadLagDays: int(int64(1) << 32)}},
			},
			want: ErrDayCountOutOfRange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Schedule(tc.params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
			if result != nil {
				t.Errorf("expected nil result, got %+v", result)
			}
		})
	}

	_, err := Schedule(ScheduleParams{Mode: ModeCascade})
	if err == nil || err.Error() != "anchorWorkItemId is required for cascade mode" {
		t.Errorf("unexpected anchor error message: %v", err)
	}
}

func TestSchedule_EmptyDependencyTypeIsFinishToStart(t *testing.T) {
	result := mustSchedule(t, ScheduleParams{
		WorkItems:    []WorkItem{item("a", 2), item("b", 1)},
		Dependencies: []Dependency{{PredecessorID: "a", SuccessorID: "b"}},
		Today:        d("2026-01-01"),
	})
	if si := mustItem(t, result, "b"); si.ScheduledStartDate != d("2026-01-03") {
		t.Errorf("expected b to start 2026-01-03, got %s", si.ScheduledStartDate)
	}
}

func assertSchedule(t *testing.T, si *ScheduledItem, es, ef, ls, lf string, float int, critical bool) {
	t.Helper()
	if si.ScheduledStartDate != d(es) {
		t.Errorf("item %s: expected ES=%s, got %s", si.WorkItemID, es, si.ScheduledStartDate)
	}
	if si.ScheduledEndDate != d(ef) {
		t.Errorf("item %s: expected EF=%s, got %s", si.WorkItemID, ef, si.ScheduledEndDate)
	}
	if si.LatestStartDate != d(ls) {
		t.Errorf("item %s: expected LS=%s, got %s", si.WorkItemID, ls, si.LatestStartDate)
	}
	if si.LatestFinishDate != d(lf) {
		t.Errorf("item %s: expected LF=%s, got %s", si.WorkItemID, lf, si.LatestFinishDate)
	}
	if si.TotalFloat != float {
		t.Errorf("item %s: expected float=%d, got %d", si.WorkItemID, float, si.TotalFloat)
	}
	if si.IsCritical != critical {
		t.Errorf("item %s: expected critical=%v, got %v", si.WorkItemID, critical, si.IsCritical)
	}
}

func assertPath(t *testing.T, result *ScheduleResult, ids ...string) {
	t.Helper()
	if diff := cmp.Diff(ids, result.CriticalPath); diff != "" {
		t.Errorf("critical path mismatch (-want +got):\n%s", diff)
	}
}
