package models

import (
	"fmt"
	"strings"
)

// CommitMessage is the deterministic, rule-based commit message chopstack's
// VCS engine generates for a completed task. An LLM may be asked to produce
// a nicer one (see internal/vcsengine), but it must always be possible to
// fall back to this deterministic shape without any external call.
type CommitMessage struct {
	// Type is the conventional-commit prefix, e.g. "feat", "fix", "chore".
	// Inferred from the task if not explicit.
	Type string

	// Subject is the one-line summary (the task's name).
	Subject string

	// Body is the extended description, typically the acceptance criteria
	// rendered as a checklist.
	Body string
}

// BuildCommitMessage formats the conventional-commit subject line:
// "type: subject" if Type is set, otherwise just "subject".
func (c CommitMessage) BuildCommitMessage() string {
	if c.Type != "" {
		return fmt.Sprintf("%s: %s", c.Type, c.Subject)
	}
	return c.Subject
}

// BuildFullCommitMessage returns the subject line followed by a blank line
// and the body, if any.
func (c CommitMessage) BuildFullCommitMessage() string {
	msg := c.BuildCommitMessage()
	if c.Body != "" {
		return msg + "\n\n" + c.Body
	}
	return msg
}

// DeterministicCommitMessage builds a CommitMessage for a task using only
// information already present on the task — no LLM call, no network I/O.
// This is the mandatory fallback spec.md §4.5 requires for commit message
// generation.
func DeterministicCommitMessage(t Task) CommitMessage {
	var body strings.Builder
	if t.Description != "" {
		body.WriteString(t.Description)
	}
	if len(t.AcceptanceCriteria) > 0 {
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString("Acceptance criteria:\n")
		for _, criterion := range t.AcceptanceCriteria {
			body.WriteString("- ")
			body.WriteString(criterion)
			body.WriteString("\n")
		}
	}
	return CommitMessage{
		Type:    inferCommitType(t),
		Subject: t.Name,
		Body:    strings.TrimRight(body.String(), "\n"),
	}
}

// inferCommitType guesses a conventional-commit type from the task id/name.
// This is a best-effort heuristic, not a correctness requirement; "feat" is
// the default when no keyword matches.
func inferCommitType(t Task) string {
	lower := strings.ToLower(t.ID + " " + t.Name)
	switch {
	case strings.Contains(lower, "test"):
		return "test"
	case strings.Contains(lower, "fix"), strings.Contains(lower, "bug"):
		return "fix"
	case strings.Contains(lower, "doc"):
		return "docs"
	case strings.Contains(lower, "refactor"):
		return "refactor"
	default:
		return "feat"
	}
}
