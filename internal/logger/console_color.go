package logger

import (
	"fmt"

	"github.com/fatih/color"
)

// colorScheme defines consistent colors for console output.
// Green: success/completion
// Red: failure/error
// Yellow: warning
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for console lines.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single labeled value with colorized label
// and value. Format: "label: value".
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatFilesChanged summarizes a task's changed-file list as "files: N"
// (label and value colors), or "files: none" in the label color when the
// list is empty. Colors are off whenever NewConsoleLogger has set
// color.NoColor (output not a TTY, or color disabled).
func formatFilesChanged(files []string, scheme *colorScheme) string {
	if len(files) == 0 {
		return scheme.label.Sprint("files: none")
	}
	return formatColorizedMetric("files", len(files), scheme)
}
