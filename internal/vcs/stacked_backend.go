package vcs

import (
	"context"
	"strings"
)

// StackedBackend layers chopstack's stacking operations over a plain git
// worktree/commit substrate and an external stacking CLI (e.g. a
// Graphite-style tool) that understands parent-child branch relationships.
// All other operations delegate to an embedded GitBackend; only Name,
// IsAvailable, CreateBranch, Commit, Submit, TrackBranch, Restack, and
// GetStackInfo differ.
type StackedBackend struct {
	*GitBackend
	// StackCLI is the helper executable's name, e.g. "gt".
	StackCLI string
}

// NewStackedBackend constructs a StackedBackend using the real git binary
// plus the named stacking CLI.
func NewStackedBackend(stackCLI string) *StackedBackend {
	return &StackedBackend{GitBackend: NewGitBackend(), StackCLI: stackCLI}
}

var (
	_ Backend         = (*StackedBackend)(nil)
	_ StackingBackend = (*StackedBackend)(nil)
)

func (s *StackedBackend) Name() string { return "stacked" }

func (s *StackedBackend) runStack(ctx context.Context, workdir, op string, args ...string) (string, error) {
	output, err := s.Runner.Run(ctx, workdir, s.StackCLI, args...)
	if err != nil {
		return output, wrapErr(op, s.StackCLI+" "+strings.Join(args, " "), output, err)
	}
	return output, nil
}

// IsAvailable additionally requires the stacking CLI itself to be present.
func (s *StackedBackend) IsAvailable(ctx context.Context) bool {
	if !s.GitBackend.IsAvailable(ctx) {
		return false
	}
	_, err := s.Runner.Run(ctx, "", s.StackCLI, "--version")
	return err == nil
}

// CreateBranch honors the precedence spec.md §4.4 requires: if Parent is
// set and Track is true, the branch is created and registered as a stack
// child of Parent via the stacking CLI; otherwise it falls back to the
// base/parent/HEAD git branch creation GitBackend already implements.
func (s *StackedBackend) CreateBranch(ctx context.Context, workdir, branchName string, opts BranchOptions) error {
	if opts.Parent != "" && opts.Track {
		if _, err := s.run(ctx, workdir, "createBranch", "checkout", opts.Parent); err != nil {
			return err
		}
		_, err := s.runStack(ctx, workdir, "createBranch", "branch", "create", branchName)
		return err
	}
	return s.GitBackend.CreateBranch(ctx, workdir, branchName, opts)
}

// Commit defers to git for the actual commit, then restacks descendants
// unless NoRestack is set — mirroring how a stacking CLI normally keeps a
// branch's children up to date automatically on every commit.
func (s *StackedBackend) Commit(ctx context.Context, workdir, message string, opts CommitOptions) (string, error) {
	hash, err := s.GitBackend.Commit(ctx, workdir, message, opts)
	if err != nil {
		return "", err
	}
	if opts.NoRestack {
		return hash, nil
	}
	if _, err := s.runStack(ctx, workdir, "commit", "restack"); err != nil {
		return hash, err
	}
	return hash, nil
}

// Submit delegates to the stacking CLI's own submit/publish command,
// returning the review URLs it reports one per line.
func (s *StackedBackend) Submit(ctx context.Context, workdir string, opts SubmitOptions) ([]string, error) {
	args := []string{"submit"}
	if opts.Draft {
		args = append(args, "--draft")
	}
	if opts.AutoMerge {
		args = append(args, "--auto-merge")
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Branches...)

	output, err := s.runStack(ctx, workdir, "submit", args...)
	if err != nil {
		return nil, err
	}
	return parseSubmitURLs(output), nil
}

func (s *StackedBackend) TrackBranch(ctx context.Context, workdir, branchName, parent string) error {
	_, err := s.runStack(ctx, workdir, "trackBranch", "branch", "track", branchName, "--parent", parent)
	return err
}

func (s *StackedBackend) Restack(ctx context.Context, workdir, branchName string) error {
	_, err := s.runStack(ctx, workdir, "restack", "restack", branchName)
	return err
}

func (s *StackedBackend) GetStackInfo(ctx context.Context, workdir, branchName string) ([]string, error) {
	output, err := s.runStack(ctx, workdir, "getStackInfo", "log", "short", branchName)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return []string{}, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

func parseSubmitURLs(output string) []string {
	var urls []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			urls = append(urls, line)
		}
	}
	if urls == nil {
		return []string{}
	}
	return urls
}
