// Package vcsengine owns the per-task worktree isolation discipline and
// the stack-assembly protocol spec.md §4.5 describes, built on top of the
// internal/vcs Backend port.
package vcsengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/conductor/internal/filelock"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/vcs"
)

// Config carries the branch-prefix/shadow-path settings spec.md §6 lists
// under "Configuration".
type Config struct {
	BranchPrefix string
	ShadowPath   string // relative to repoRoot, e.g. ".chopstack/shadows"
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{BranchPrefix: "chopstack/", ShadowPath: ".chopstack/shadows"}
}

// Engine owns worktree lifecycle, commit integration, and stack assembly
// against a single vcs.Backend.
type Engine struct {
	Backend vcs.Backend
	Config  Config
}

// New constructs an Engine.
func New(backend vcs.Backend, cfg Config) *Engine {
	return &Engine{Backend: backend, Config: cfg}
}

func (e *Engine) branchName(taskID string) string {
	return e.Config.BranchPrefix + taskID
}

func (e *Engine) worktreePath(repoRoot, taskID string) string {
	return filepath.Join(repoRoot, e.Config.ShadowPath, taskID)
}

func (e *Engine) lockPath(repoRoot string) string {
	return filepath.Join(repoRoot, e.Config.ShadowPath, ".worktree.lock")
}

// CreateWorktreesForTasks implements spec.md §4.5's creation protocol: one
// worktree per task, rooted at <repoRoot>/<shadowPath>/<taskId> on branch
// <branchPrefix><taskId>, created from baseRef. Idempotent against a
// previous crashed run — if a branch or worktree of the expected name
// already exists, it is reported as a *models.WorktreeCollisionError with
// the exact cleanup command a user would run, and no worktree is created
// for that task; earlier, already-created worktrees in this call are left
// in place for the caller to decide what to do with.
//
// The list-existing-then-create sequence below is a check-then-act: two
// chopstack processes pointed at the same repoRoot could otherwise both
// see a branch name as free and race to create it. An exclusive
// cross-process file lock over the shadow directory serializes that
// section the way the teacher's filelock.LockAndWrite serializes
// concurrent state-file writers.
func (e *Engine) CreateWorktreesForTasks(ctx context.Context, tasks []models.Task, baseRef, repoRoot string) ([]models.WorktreeContext, error) {
	if err := os.MkdirAll(filepath.Join(repoRoot, e.Config.ShadowPath), 0755); err != nil {
		return nil, fmt.Errorf("create shadow directory: %w", err)
	}
	lock := filelock.NewFileLock(e.lockPath(repoRoot))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire worktree lock: %w", err)
	}
	defer lock.Unlock()

	existing, err := e.Backend.ListWorktrees(ctx, repoRoot)
	if err != nil {
		return nil, fmt.Errorf("list existing worktrees: %w", err)
	}
	existingPaths := make(map[string]bool, len(existing))
	existingBranches := make(map[string]bool, len(existing))
	for _, rec := range existing {
		existingPaths[rec.Path] = true
		if rec.Branch != "" {
			existingBranches[rec.Branch] = true
		}
	}

	contexts := make([]models.WorktreeContext, 0, len(tasks))
	for _, t := range tasks {
		branch := e.branchName(t.ID)
		path := e.worktreePath(repoRoot, t.ID)
		absPath, absErr := filepath.Abs(path)
		if absErr != nil {
			absPath = path
		}

		if existingPaths[path] || existingBranches[branch] {
			return contexts, &models.WorktreeCollisionError{
				TaskID:  t.ID,
				Path:    path,
				Branch:  branch,
				Cleanup: fmt.Sprintf("git worktree remove --force %s && git branch -D %s", path, branch),
			}
		}

		if err := e.Backend.AddWorktree(ctx, repoRoot, path, branch, baseRef); err != nil {
			return contexts, fmt.Errorf("create worktree for task %s: %w", t.ID, err)
		}
		existingPaths[path] = true
		existingBranches[branch] = true

		contexts = append(contexts, models.WorktreeContext{
			TaskID:        t.ID,
			BranchName:    branch,
			WorktreePath:  path,
			AbsolutePath:  absPath,
			BaseRef:       baseRef,
		})
	}

	return contexts, nil
}

// CleanupWorktrees implements spec.md §4.5's cleanup protocol: removes
// each worktree's directory, optionally deleting its branch too
// (keepBranch=true retains the branch, needed by stacked workflows that
// continue to reference it after the worktree itself is gone).
func (e *Engine) CleanupWorktrees(ctx context.Context, repoRoot string, contexts []models.WorktreeContext, keepBranch bool) error {
	var firstErr error
	for _, wc := range contexts {
		if err := e.Backend.RemoveWorktree(ctx, repoRoot, wc.WorktreePath); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove worktree for task %s: %w", wc.TaskID, err)
		}
		if keepBranch {
			continue
		}
		if err := e.Backend.DeleteBranch(ctx, repoRoot, wc.BranchName); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete branch for task %s: %w", wc.TaskID, err)
		}
	}
	return firstErr
}
