package vcs

import (
	"context"
	"fmt"
	"strings"
)

// GitBackend implements Backend directly against the system git binary,
// with no branch-stacking capability: this is the "merge-commit" variant
// spec.md §4.4 describes, requiring only the base VCS tool.
//
// Grounded on the teacher's internal/executor/git_checkpointer.go
// DefaultGitCheckpointer: the same runCommand-through-an-injectable-runner
// shape, generalized from checkpoint/rollback's narrow branch+reset
// surface to the full create/commit/submit/conflict contract Backend
// requires.
type GitBackend struct {
	Runner CommandRunner
}

// NewGitBackend constructs a GitBackend using the real git binary.
func NewGitBackend() *GitBackend {
	return &GitBackend{Runner: ExecCommandRunner{}}
}

var _ Backend = (*GitBackend)(nil)

func (g *GitBackend) Name() string { return "git" }

func (g *GitBackend) run(ctx context.Context, workdir, op string, args ...string) (string, error) {
	output, err := g.Runner.Run(ctx, workdir, "git", args...)
	if err != nil {
		return output, wrapErr(op, "git "+strings.Join(args, " "), output, err)
	}
	return output, nil
}

func (g *GitBackend) IsAvailable(ctx context.Context) bool {
	_, err := g.Runner.Run(ctx, "", "git", "--version")
	return err == nil
}

func (g *GitBackend) Initialize(ctx context.Context, workdir string, trunk string) error {
	if _, err := g.run(ctx, workdir, "initialize", "rev-parse", "--is-inside-work-tree"); err != nil {
		return err
	}
	if trunk == "" {
		return nil
	}
	_, err := g.run(ctx, workdir, "initialize", "rev-parse", "--verify", trunk)
	return err
}

func (g *GitBackend) CreateBranch(ctx context.Context, workdir, branchName string, opts BranchOptions) error {
	base := opts.Base
	if base == "" {
		base = opts.Parent
	}
	args := []string{"branch", branchName}
	if base != "" {
		args = append(args, base)
	}
	_, err := g.run(ctx, workdir, "createBranch", args...)
	return err
}

func (g *GitBackend) DeleteBranch(ctx context.Context, workdir, branchName string) error {
	_, err := g.run(ctx, workdir, "deleteBranch", "branch", "-D", branchName)
	return err
}

func (g *GitBackend) Commit(ctx context.Context, workdir, message string, opts CommitOptions) (string, error) {
	if len(opts.Files) > 0 {
		addArgs := append([]string{"add"}, opts.Files...)
		if _, err := g.run(ctx, workdir, "commit", addArgs...); err != nil {
			return "", err
		}
	} else {
		if _, err := g.run(ctx, workdir, "commit", "add", "-A"); err != nil {
			return "", err
		}
	}

	commitArgs := []string{"commit", "-m", message}
	if opts.AllowEmpty {
		commitArgs = append(commitArgs, "--allow-empty")
	}
	if _, err := g.run(ctx, workdir, "commit", commitArgs...); err != nil {
		return "", err
	}

	hash, err := g.run(ctx, workdir, "commit", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(hash), nil
}

// Submit has no integration for the plain git backend: spec.md §4.4
// requires returning an empty URL list, not an error.
func (g *GitBackend) Submit(ctx context.Context, workdir string, opts SubmitOptions) ([]string, error) {
	return []string{}, nil
}

func (g *GitBackend) HasConflicts(ctx context.Context, workdir string) (bool, error) {
	output, err := g.run(ctx, workdir, "hasConflicts", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

func (g *GitBackend) GetConflictedFiles(ctx context.Context, workdir string) ([]string, error) {
	output, err := g.run(ctx, workdir, "getConflictedFiles", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return []string{}, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

func (g *GitBackend) AbortMerge(ctx context.Context, workdir string) error {
	if _, err := g.run(ctx, workdir, "abortMerge", "merge", "--abort"); err == nil {
		return nil
	}
	_, err := g.run(ctx, workdir, "abortMerge", "cherry-pick", "--abort")
	return err
}

func (g *GitBackend) CherryPick(ctx context.Context, workdir, commitHash string) error {
	_, err := g.run(ctx, workdir, "cherryPick", "cherry-pick", commitHash)
	return err
}

func (g *GitBackend) MergeNoFF(ctx context.Context, workdir, branchName string) error {
	_, err := g.run(ctx, workdir, "mergeNoFF", "merge", "--no-ff", "--no-edit", branchName)
	return err
}

func (g *GitBackend) AddWorktree(ctx context.Context, repoRoot, path, branchName, base string) error {
	args := []string{"worktree", "add"}
	existing, _ := g.branchExists(ctx, repoRoot, branchName)
	if existing {
		args = append(args, path, branchName)
	} else {
		args = append(args, "-b", branchName, path)
		if base != "" {
			args = append(args, base)
		}
	}
	_, err := g.run(ctx, repoRoot, "addWorktree", args...)
	return err
}

func (g *GitBackend) branchExists(ctx context.Context, repoRoot, branchName string) (bool, error) {
	_, err := g.Runner.Run(ctx, repoRoot, "git", "rev-parse", "--verify", "refs/heads/"+branchName)
	return err == nil, nil
}

func (g *GitBackend) RemoveWorktree(ctx context.Context, repoRoot, path string) error {
	_, err := g.run(ctx, repoRoot, "removeWorktree", "worktree", "remove", "--force", path)
	return err
}

func (g *GitBackend) ListWorktrees(ctx context.Context, repoRoot string) ([]WorktreeRecord, error) {
	output, err := g.run(ctx, repoRoot, "listWorktrees", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(output), nil
}

// parseWorktreePorcelain parses `git worktree list --porcelain` output:
// records are separated by blank lines, each a sequence of "worktree",
// "HEAD", and "branch refs/heads/<name>" lines (the last of which is
// absent for a detached-HEAD worktree).
func parseWorktreePorcelain(output string) []WorktreeRecord {
	var records []WorktreeRecord
	var current WorktreeRecord

	flush := func() {
		if current.Path != "" {
			records = append(records, current)
		}
		current = WorktreeRecord{}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()

	return records
}

// DescribeWorktree renders a WorktreeRecord for diagnostics, used by
// vcsengine's collision-reporting path.
func DescribeWorktree(r WorktreeRecord) string {
	if r.Branch != "" {
		return fmt.Sprintf("%s (branch %s)", r.Path, r.Branch)
	}
	return r.Path
}
