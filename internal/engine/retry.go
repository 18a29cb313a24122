package engine

import (
	"fmt"
	"strings"
)

// RetryBuilder produces the next prompt for a task that failed and still
// has retries remaining. Kept pure and unit-testable per spec.md §9's
// design note: it takes only the original prompt, the captured error text,
// and the files the task has already touched, and returns the augmented
// prompt — no I/O, no hidden state.
type RetryBuilder func(originalPrompt, lastError string, touchedFiles []string) string

// DefaultRetryBuilder appends the captured error, the already-touched file
// list, and a machine-readable hint line to the original prompt, per
// spec.md §4.6 step 3f.
func DefaultRetryBuilder(originalPrompt, lastError string, touchedFiles []string) string {
	var b strings.Builder
	b.WriteString(originalPrompt)
	b.WriteString("\n\n---\nPrevious attempt failed.\n")
	b.WriteString("Error: ")
	b.WriteString(lastError)
	b.WriteString("\n")
	if len(touchedFiles) > 0 {
		b.WriteString("Files already touched: ")
		b.WriteString(strings.Join(touchedFiles, ", "))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Hint: previous attempt failed with %q; do not repeat the same approach.\n", lastError))
	return b.String()
}
