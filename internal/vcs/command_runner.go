package vcs

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts shell command execution for testability, mirroring
// the teacher's internal/executor CommandRunner. Unlike the teacher's
// string-joined variant (built for simple dependency-check commands), this
// one takes an argv slice directly — branch names, commit messages, and
// file paths routinely contain spaces and shell metacharacters, and a
// join-then-reparse round trip would reintroduce the same injection risk
// exec.Command's argv form exists to avoid.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (output string, err error)
}

// ExecCommandRunner runs commands via os/exec directly.
type ExecCommandRunner struct{}

// Run executes name with args in dir (if non-empty) and returns combined
// stdout+stderr.
func (ExecCommandRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}
