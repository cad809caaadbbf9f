package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// SetColor forces colour on or off, e.g. for --no-color or tests.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// ColorEnabled reports whether styled strings carry escape codes.
func ColorEnabled() bool {
	return !color.NoColor
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status string) string {
	switch status {
	case "completed":
		return Green("✓")
	case "in_progress":
		return Cyan("●")
	case "blocked":
		return Red("⊘")
	default:
		return Dim("◌")
	}
}

// WarningIcon returns a colored marker for a warning type.
func WarningIcon(kind string) string {
	switch kind {
	case "start_before_violated":
		return Red("✗")
	case "already_completed":
		return Yellow("!")
	default:
		return Dim("?")
	}
}

// Float renders total float right-aligned in width columns, highlighting
// zero. Padding is applied before styling so escape codes do not count
// towards the width.
func Float(days, width int) string {
	s := fmt.Sprintf("%*d", width, days)
	if days == 0 {
		return BoldYellow(s)
	}
	return Dim(s)
}
