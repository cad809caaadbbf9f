package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/ui"
)

// Reporter renders a schedule result for terminals, Graphviz and JSON.
type Reporter struct {
	Params cpm.ScheduleParams
	Result *cpm.ScheduleResult

	titles   map[string]string
	statuses map[string]cpm.Status
}

// New creates a Reporter for result computed from params.
func New(params cpm.ScheduleParams, result *cpm.ScheduleResult) *Reporter {
	r := &Reporter{
		Params:   params,
		Result:   result,
		titles:   make(map[string]string, len(params.WorkItems)),
		statuses: make(map[string]cpm.Status, len(params.WorkItems)),
	}
	for _, wi := range params.WorkItems {
		r.titles[wi.ID] = wi.Title
		r.statuses[wi.ID] = wi.Status
	}
	return r
}

// PrintSchedule writes the schedule table followed by the critical path,
// project finish and warnings. A cycle prints the diagnostic instead.
func (r *Reporter) PrintSchedule(w io.Writer) {
	if r.PrintCycle(w) {
		return
	}

	fmt.Fprintf(w, "📅 %s %s\n", ui.BoldCyan("Schedule"), ui.Dim(fmt.Sprintf("(%s, today %s)", r.mode(), r.Params.Today)))
	fmt.Fprintln(w, ui.Cyan("══════════════════════"))
	fmt.Fprintln(w)

	if len(r.Result.ScheduledItems) == 0 {
		fmt.Fprintln(w, ui.Dim("  nothing to schedule"))
		return
	}

	fmt.Fprintf(w, "    %-12s %-32s %-10s %-10s %-10s %-10s %5s\n",
		"ID", "TITLE", "START", "END", "LATE START", "LATE END", "FLOAT")
	for _, si := range r.Result.ScheduledItems {
		r.printItem(w, si)
	}
	fmt.Fprintln(w)

	r.PrintCritical(w)
	if finish, ok := r.Result.ProjectFinish(); ok {
		fmt.Fprintf(w, "Finish:    %s\n", ui.Bold(finish))
	}
	r.PrintWarnings(w)
}

func (r *Reporter) printItem(w io.Writer, si cpm.ScheduledItem) {
	icon := ui.StatusIcon(string(r.statuses[si.WorkItemID]))

	marks := ""
	if si.IsCritical {
		marks += " " + ui.BoldYellow("⚡")
	}
	if si.IsLate {
		marks += " " + ui.BoldRed("late")
	}
	if si.Changed() && si.PreviousStartDate != nil {
		marks += " " + ui.Dim("moved from "+si.PreviousStartDate.String())
	}

	fmt.Fprintf(w, "  %s %s %-32s %-10s %-10s %-10s %-10s %s%s\n",
		icon, ui.BoldMagenta(fmt.Sprintf("%-12s", si.WorkItemID)), truncate(r.titles[si.WorkItemID], 32),
		si.ScheduledStartDate, si.ScheduledEndDate,
		si.LatestStartDate, si.LatestFinishDate,
		ui.Float(si.TotalFloat, 5), marks)
}

// PrintCritical writes the critical path as a single arrow-joined line.
func (r *Reporter) PrintCritical(w io.Writer) {
	if len(r.Result.CriticalPath) == 0 {
		fmt.Fprintf(w, "Critical:  %s\n", ui.Dim("none"))
		return
	}
	fmt.Fprintf(w, "Critical:  %s\n", ui.BoldYellow("⚡ "+strings.Join(r.Result.CriticalPath, " → ")))
}

// PrintWarnings writes the warnings section, if any.
func (r *Reporter) PrintWarnings(w io.Writer) {
	if len(r.Result.Warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", ui.BoldYellow(fmt.Sprintf("Warnings (%d):", len(r.Result.Warnings))))
	for _, warn := range r.Result.Warnings {
		fmt.Fprintf(w, "  %s %s %s\n", ui.WarningIcon(string(warn.Type)), ui.BoldMagenta(warn.WorkItemID), warn.Message)
	}
}

// PrintCycle writes the cycle diagnostic and reports whether there was one.
func (r *Reporter) PrintCycle(w io.Writer) bool {
	if !r.Result.HasCycle() {
		return false
	}
	nodes := append([]string(nil), r.Result.CycleNodes...)
	nodes = append(nodes, nodes[0])
	fmt.Fprintf(w, "%s %s\n", ui.BoldRed("✗ dependency cycle:"), strings.Join(nodes, " → "))
	fmt.Fprintln(w, ui.Dim("  remove one of these dependencies and try again"))
	return true
}

// PrintGraph writes an ASCII view grouping items by scheduled start date,
// with each item's outgoing dependencies underneath.
func (r *Reporter) PrintGraph(w io.Writer) {
	if r.PrintCycle(w) {
		return
	}

	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Dependency Graph"))
	fmt.Fprintln(w, ui.Cyan("════════════════════"))
	fmt.Fprintln(w)

	out := r.successors()
	for _, group := range r.startGroups() {
		fmt.Fprintf(w, "%s %s %s\n", ui.Cyan("──"), group.start, ui.Cyan("──────────────────────────────"))
		for _, si := range group.items {
			crit := " "
			if si.IsCritical {
				crit = ui.BoldYellow("⚡")
			}
			fmt.Fprintf(w, "  %s [%s] %s\n", crit, ui.BoldMagenta(si.WorkItemID), r.titles[si.WorkItemID])
			for _, dep := range out[si.WorkItemID] {
				fmt.Fprintf(w, "      %s %s %s\n", ui.Dim("└──→"), ui.Magenta(dep.SuccessorID), ui.Dim(edgeLabel(dep)))
			}
		}
		fmt.Fprintln(w)
	}
}

type startGroup struct {
	start dates.Date
	items []cpm.ScheduledItem
}

func (r *Reporter) startGroups() []startGroup {
	byStart := make(map[dates.Date][]cpm.ScheduledItem)
	for _, si := range r.Result.ScheduledItems {
		byStart[si.ScheduledStartDate] = append(byStart[si.ScheduledStartDate], si)
	}
	groups := make([]startGroup, 0, len(byStart))
	for start, items := range byStart {
		groups = append(groups, startGroup{start: start, items: items})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].start < groups[j].start })
	return groups
}

// successors returns the dependencies whose endpoints were both scheduled,
// keyed by predecessor.
func (r *Reporter) successors() map[string][]cpm.Dependency {
	scheduled := make(map[string]bool, len(r.Result.ScheduledItems))
	for _, si := range r.Result.ScheduledItems {
		scheduled[si.WorkItemID] = true
	}
	out := make(map[string][]cpm.Dependency)
	for _, dep := range r.Params.Dependencies {
		if scheduled[dep.PredecessorID] && scheduled[dep.SuccessorID] {
			out[dep.PredecessorID] = append(out[dep.PredecessorID], dep)
		}
	}
	return out
}

// PrintDOT writes the scheduled graph in Graphviz format with the critical
// path highlighted.
func (r *Reporter) PrintDOT(w io.Writer) {
	fmt.Fprintln(w, "digraph ganttloom {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	critical := make(map[string]bool)
	for _, si := range r.Result.ScheduledItems {
		label := fmt.Sprintf("%s\\n%s\\n%s .. %s", si.WorkItemID, escapeDOT(r.titles[si.WorkItemID]),
			si.ScheduledStartDate, si.ScheduledEndDate)
		attrs := fmt.Sprintf(`label="%s"`, label)
		style := []string{"rounded"}
		if si.IsCritical {
			critical[si.WorkItemID] = true
			style = append(style, "bold")
			attrs += ", color=red"
		}
		if si.IsLate {
			style = append(style, "filled")
			attrs += `, fillcolor="#fde2e2"`
		}
		if len(style) > 1 {
			attrs += fmt.Sprintf(`, style="%s"`, strings.Join(style, ","))
		}
		fmt.Fprintf(w, "  %q [%s];\n", si.WorkItemID, attrs)
	}

	fmt.Fprintln(w)

	out := r.successors()
	for _, si := range r.Result.ScheduledItems {
		for _, dep := range out[si.WorkItemID] {
			attrs := []string{fmt.Sprintf("label=%q", edgeLabel(dep))}
			if critical[dep.PredecessorID] && critical[dep.SuccessorID] {
				attrs = append(attrs, "color=red", "penwidth=2")
			}
			fmt.Fprintf(w, "  %q -> %q [%s];\n", dep.PredecessorID, dep.SuccessorID, strings.Join(attrs, ", "))
		}
	}

	fmt.Fprintln(w, "}")
}

// JSON returns the result as indented JSON.
func (r *Reporter) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Result, "", "  ")
}

func (r *Reporter) mode() string {
	if r.Params.Mode == cpm.ModeCascade {
		return "cascade from " + r.Params.AnchorWorkItemID
	}
	return string(cpm.ModeFull)
}

func edgeLabel(dep cpm.Dependency) string {
	abbrev := map[cpm.DependencyType]string{
		"":                 "FS",
		cpm.FinishToStart:  "FS",
		cpm.StartToStart:   "SS",
		cpm.FinishToFinish: "FF",
		cpm.StartToFinish:  "SF",
	}[dep.DependencyType]
	switch {
	case dep.LeadLagDays > 0:
		return fmt.Sprintf("%s+%dd", abbrev, dep.LeadLagDays)
	case dep.LeadLagDays < 0:
		return fmt.Sprintf("%s%dd", abbrev, dep.LeadLagDays)
	}
	return abbrev
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
