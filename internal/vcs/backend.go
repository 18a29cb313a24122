// Package vcs defines the polymorphic VCS backend port spec.md §4.4
// describes and its two concrete variants: a plain git merge-commit
// backend, and a stacked backend layered on an external branch-stacking
// CLI.
//
// Grounded on the teacher's internal/executor/git_checkpointer.go: same
// exec.CommandContext-based command execution, injectable CommandRunner
// for tests, and typed error wrapping — generalized from checkpoint/
// rollback operations to the broader branch/commit/submit/conflict
// surface the VCS engine needs.
package vcs

import (
	"context"

	"github.com/harrison/conductor/internal/models"
)

// BranchOptions configures CreateBranch, per spec.md §4.4.
type BranchOptions struct {
	// Base names the ref to branch from when Parent is unset, or when
	// Track is false.
	Base string
	// Parent names the branch this one stacks on, for backends that
	// support stacking.
	Parent string
	// Track requests that, when the backend supports stacking, the new
	// branch be registered as a child of Parent.
	Track bool
}

// CommitOptions configures Commit, per spec.md §4.4.
type CommitOptions struct {
	// Files restricts staging to these paths; if empty, all modified
	// files in the working tree are staged.
	Files []string
	// AllowEmpty permits a commit with no staged changes.
	AllowEmpty bool
	// NoRestack skips a stacked backend's automatic restack-on-commit.
	NoRestack bool
}

// SubmitOptions configures Submit, per spec.md §4.4.
type SubmitOptions struct {
	Branches  []string
	Draft     bool
	AutoMerge bool
	ExtraArgs []string
}

// Backend is the polymorphic VCS port spec.md §4.4 describes. Every
// operation that shells out returns a *models.VcsError on failure, with
// the attempted command and captured diagnostic output.
type Backend interface {
	// Name identifies the backend for logging, e.g. "git" or "stacked".
	Name() string

	// IsAvailable probes whether the underlying tool is installed.
	IsAvailable(ctx context.Context) bool

	// Initialize performs idempotent setup in workdir, optionally against
	// a named trunk branch.
	Initialize(ctx context.Context, workdir string, trunk string) error

	// CreateBranch creates branchName in workdir per opts's base/parent/
	// track precedence: parent+track (if supported) > base > parent > HEAD.
	CreateBranch(ctx context.Context, workdir, branchName string, opts BranchOptions) error

	// DeleteBranch removes a branch.
	DeleteBranch(ctx context.Context, workdir, branchName string) error

	// Commit stages opts.Files (or everything, if empty) and commits
	// message, returning the resulting commit hash.
	Commit(ctx context.Context, workdir, message string, opts CommitOptions) (string, error)

	// Submit requests review/publication of branches. Backends without an
	// integration return an empty slice, not an error.
	Submit(ctx context.Context, workdir string, opts SubmitOptions) ([]string, error)

	// HasConflicts reports whether workdir currently has an unresolved
	// merge/cherry-pick in progress.
	HasConflicts(ctx context.Context, workdir string) (bool, error)

	// GetConflictedFiles lists paths with unresolved conflict markers.
	GetConflictedFiles(ctx context.Context, workdir string) ([]string, error)

	// AbortMerge aborts the in-progress merge or cherry-pick.
	AbortMerge(ctx context.Context, workdir string) error

	// CherryPick applies commitHash onto the current branch in workdir.
	CherryPick(ctx context.Context, workdir, commitHash string) error

	// MergeNoFF merges branchName into the current branch with --no-ff
	// semantics, stopping on the first conflict.
	MergeNoFF(ctx context.Context, workdir, branchName string) error

	// AddWorktree creates a worktree at path checked out to branchName,
	// created from base if the branch does not yet exist.
	AddWorktree(ctx context.Context, repoRoot, path, branchName, base string) error

	// RemoveWorktree removes the worktree at path.
	RemoveWorktree(ctx context.Context, repoRoot, path string) error

	// ListWorktrees parses `git worktree list --porcelain` (or the
	// equivalent) into a slice of existing worktree records.
	ListWorktrees(ctx context.Context, repoRoot string) ([]WorktreeRecord, error)
}

// WorktreeRecord is one entry from ListWorktrees, modeling the porcelain
// `worktree`/`HEAD`/`branch refs/heads/<name>` record triplet.
type WorktreeRecord struct {
	Path   string
	Head   string
	Branch string
}

// StackingBackend is implemented by backends that support the optional
// stacked-only operations from spec.md §4.4.
type StackingBackend interface {
	Backend

	// TrackBranch registers branchName as a child of parent after the
	// fact (used when a branch was created without Track set).
	TrackBranch(ctx context.Context, workdir, branchName, parent string) error

	// Restack replays every branch in the stack rooted at branchName onto
	// its current parent tip.
	Restack(ctx context.Context, workdir, branchName string) error

	// GetStackInfo returns the ordered parent-to-child branch chain
	// rooted at branchName.
	GetStackInfo(ctx context.Context, workdir, branchName string) ([]string, error)
}

// wrapErr builds a *models.VcsError from a failed command invocation.
func wrapErr(op, command, output string, err error) error {
	if err == nil {
		return nil
	}
	return &models.VcsError{Op: op, Command: command, Output: output, Underlying: err}
}
