package vcsengine

import (
	"context"

	"github.com/harrison/conductor/internal/vcs"
)

// fakeBackend is a scriptable vcs.Backend double, standing in for
// *vcs.GitBackend/*vcs.StackedBackend so vcsengine's tests don't need a real
// git checkout.
type fakeBackend struct {
	name string

	worktrees       []vcs.WorktreeRecord
	addWorktreeErr  error
	removeErr       error
	deleteBranchErr error

	createBranchErr error
	createdBranches []createdBranch

	commitErr  error
	commitHash string

	submitErr  error
	submitURLs []string
	submitted  []vcs.SubmitOptions

	cherryPickErr    error
	cherryPickCalled []string

	mergeErr     error
	mergedBranch []string

	conflictedFiles []string
	abortErr        error
	abortCalled     int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeBackend) Initialize(ctx context.Context, workdir, trunk string) error { return nil }

type createdBranch struct {
	Name string
	Opts vcs.BranchOptions
}

func (f *fakeBackend) CreateBranch(ctx context.Context, workdir, branchName string, opts vcs.BranchOptions) error {
	if f.createBranchErr != nil {
		return f.createBranchErr
	}
	f.createdBranches = append(f.createdBranches, createdBranch{Name: branchName, Opts: opts})
	return nil
}

func (f *fakeBackend) DeleteBranch(ctx context.Context, workdir, branchName string) error {
	return f.deleteBranchErr
}

func (f *fakeBackend) Commit(ctx context.Context, workdir, message string, opts vcs.CommitOptions) (string, error) {
	if f.commitErr != nil {
		return "", f.commitErr
	}
	if f.commitHash == "" {
		return "deadbeef", nil
	}
	return f.commitHash, nil
}

func (f *fakeBackend) Submit(ctx context.Context, workdir string, opts vcs.SubmitOptions) ([]string, error) {
	f.submitted = append(f.submitted, opts)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitURLs, nil
}

func (f *fakeBackend) HasConflicts(ctx context.Context, workdir string) (bool, error) {
	return len(f.conflictedFiles) > 0, nil
}

func (f *fakeBackend) GetConflictedFiles(ctx context.Context, workdir string) ([]string, error) {
	return f.conflictedFiles, nil
}

func (f *fakeBackend) AbortMerge(ctx context.Context, workdir string) error {
	f.abortCalled++
	return f.abortErr
}

func (f *fakeBackend) CherryPick(ctx context.Context, workdir, commitHash string) error {
	f.cherryPickCalled = append(f.cherryPickCalled, commitHash)
	return f.cherryPickErr
}

func (f *fakeBackend) MergeNoFF(ctx context.Context, workdir, branchName string) error {
	f.mergedBranch = append(f.mergedBranch, branchName)
	return f.mergeErr
}

func (f *fakeBackend) AddWorktree(ctx context.Context, repoRoot, path, branchName, base string) error {
	if f.addWorktreeErr != nil {
		return f.addWorktreeErr
	}
	f.worktrees = append(f.worktrees, vcs.WorktreeRecord{Path: path, Branch: branchName})
	return nil
}

func (f *fakeBackend) RemoveWorktree(ctx context.Context, repoRoot, path string) error {
	return f.removeErr
}

func (f *fakeBackend) ListWorktrees(ctx context.Context, repoRoot string) ([]vcs.WorktreeRecord, error) {
	return f.worktrees, nil
}

// fakeStackingBackend additionally satisfies vcs.StackingBackend, so
// BuildStackFromTasks exercises its cherry-pick path instead of
// merge-commit's.
type fakeStackingBackend struct {
	fakeBackend
}

func (f *fakeStackingBackend) TrackBranch(ctx context.Context, workdir, branchName, parent string) error {
	return nil
}

func (f *fakeStackingBackend) Restack(ctx context.Context, workdir, branchName string) error {
	return nil
}

func (f *fakeStackingBackend) GetStackInfo(ctx context.Context, workdir, branchName string) ([]string, error) {
	return nil, nil
}

var (
	_ vcs.Backend         = (*fakeBackend)(nil)
	_ vcs.StackingBackend = (*fakeStackingBackend)(nil)
)
