package cpm

import "fmt"

// collectWarnings emits advisory diagnostics in topological order. It reads
// the computed dates and never changes them.
func (a *analysis) collectWarnings() {
	for _, n := range a.order {
		item := a.items[n]
		es := a.es[n]

		if item.DurationDays == nil {
			a.warn(item, WarningNoDuration,
				"Work item has no duration set; scheduled as a zero-duration milestone")
		}

		if item.StartBefore != nil && es.After(*item.StartBefore) {
			a.warn(item, WarningStartBeforeViolated,
				fmt.Sprintf("Scheduled start date %s is after the start-before constraint %s", es, *item.StartBefore))
		}

		if item.Status == StatusCompleted && item.StartDate != nil && *item.StartDate != es {
			a.warn(item, WarningAlreadyCompleted,
				fmt.Sprintf("Work item is completed but its computed start date %s differs from its stored start date %s", es, *item.StartDate))
		}
	}
}

func (a *analysis) warn(item *WorkItem, typ WarningType, msg string) {
	a.warnings = append(a.warnings, Warning{WorkItemID: item.ID, Type: typ, Message: msg})
}
