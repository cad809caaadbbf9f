package cpm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// cascadeFixture:
//
//	x -> a -> b -> c
//	y ------> b
//	a -> d
//	e (independent)
func cascadeFixture() ScheduleParams {
	x := item("x", 20)
	a := item("a", 2)
	a.StartDate = dp("2026-01-05")
	return ScheduleParams{
		Mode:             ModeCascade,
		AnchorWorkItemID: "a",
		WorkItems:        []WorkItem{x, item("y", 30), a, item("b", 3), item("c", 1), item("d", 1), item("e", 1)},
		Dependencies: []Dependency{
			fs("x", "a", 0),
			fs("a", "b", 0),
			fs("y", "b", 0),
			fs("b", "c", 0),
			fs("a", "d", 0),
		},
		Today: d("2026-01-01"),
	}
}

func TestCascade_ReachableSubgraphOnly(t *testing.T) {
	result := mustSchedule(t, cascadeFixture())

	var got []string
	for _, si := range result.ScheduledItems {
		got = append(got, si.WorkItemID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got); diff != "" {
		t.Errorf("scheduled items mismatch (-want +got):\n%s", diff)
	}

	// x and y are out of scope, so a is a root using its stored start and b
	// follows a alone.
	assertSchedule(t, mustItem(t, result, "a"), "2026-01-05", "2026-01-07", "2026-01-05", "2026-01-07", 0, true)
	assertSchedule(t, mustItem(t, result, "b"), "2026-01-07", "2026-01-10", "2026-01-07", "2026-01-10", 0, true)
	assertSchedule(t, mustItem(t, result, "c"), "2026-01-10", "2026-01-11", "2026-01-10", "2026-01-11", 0, true)
	assertSchedule(t, mustItem(t, result, "d"), "2026-01-07", "2026-01-08", "2026-01-10", "2026-01-11", 3, false)
	assertPath(t, result, "a", "b", "c")
}

func TestCascade_FullModeSeesEverything(t *testing.T) {
	params := cascadeFixture()
	params.Mode = ModeFull
	result := mustSchedule(t, params)

	if len(result.ScheduledItems) != len(params.WorkItems) {
		t.Fatalf("expected %d items, got %d", len(params.WorkItems), len(result.ScheduledItems))
	}
	// y(30) now drives b.
	if si := mustItem(t, result, "b"); si.ScheduledStartDate != d("2026-01-31") {
		t.Errorf("expected b to start 2026-01-31, got %s", si.ScheduledStartDate)
	}
}

func TestCascade_UnknownAnchorIsEmpty(t *testing.T) {
	params := cascadeFixture()
	params.AnchorWorkItemID = "nope"

	result := mustSchedule(t, params)
	if len(result.ScheduledItems) != 0 || len(result.CriticalPath) != 0 || result.HasCycle() {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestCascade_IgnoresCycleOutsideScope(t *testing.T) {
	params := cascadeFixture()
	params.Dependencies = append(params.Dependencies, fs("e", "y", 0), fs("y", "e", 0))

	result := mustSchedule(t, params)
	if result.HasCycle() {
		t.Fatalf("cycle outside the anchor's reach should be ignored, got %v", result.CycleNodes)
	}
	if len(result.ScheduledItems) != 4 {
		t.Errorf("expected 4 items, got %d", len(result.ScheduledItems))
	}

	params.Mode = ModeFull
	if full := mustSchedule(t, params); !full.HasCycle() {
		t.Error("full mode should report the cycle")
	}
}

func TestCascade_CycleInScope(t *testing.T) {
	params := cascadeFixture()
	params.Dependencies = append(params.Dependencies, fs("c", "a", 0))

	result := mustSchedule(t, params)
	if diff := cmp.Diff([]string{"a", "b", "c"}, result.CycleNodes); diff != "" {
		t.Errorf("cycle nodes mismatch (-want +got):\n%s", diff)
	}
	if len(result.ScheduledItems) != 0 {
		t.Errorf("expected no scheduled items, got %d", len(result.ScheduledItems))
	}
}

func TestCascade_AnchorIsSink(t *testing.T) {
	params := cascadeFixture()
	params.AnchorWorkItemID = "c"

	result := mustSchedule(t, params)
	if len(result.ScheduledItems) != 1 {
		t.Fatalf("expected only the anchor, got %d items", len(result.ScheduledItems))
	}
	assertSchedule(t, mustItem(t, result, "c"), "2026-01-01", "2026-01-02", "2026-01-01", "2026-01-02", 0, true)
}
