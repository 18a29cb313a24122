package vcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackedBackend_CreateBranch_TracksParentWhenRequested(t *testing.T) {
	runner := newFakeRunner()
	backend := &StackedBackend{GitBackend: &GitBackend{Runner: runner}, StackCLI: "gt"}

	err := backend.CreateBranch(context.Background(), "/work", "child", BranchOptions{Parent: "parent", Track: true})
	require.NoError(t, err)

	foundCheckout := false
	foundCreate := false
	for _, c := range runner.calls {
		if c.name == "git" && len(c.args) == 2 && c.args[0] == "checkout" && c.args[1] == "parent" {
			foundCheckout = true
		}
		if c.name == "gt" && len(c.args) == 3 && c.args[0] == "branch" && c.args[1] == "create" && c.args[2] == "child" {
			foundCreate = true
		}
	}
	assert.True(t, foundCheckout, "expected checkout of parent branch")
	assert.True(t, foundCreate, "expected stacking CLI branch create call")
}

func TestStackedBackend_CreateBranch_FallsBackToGitWithoutTracking(t *testing.T) {
	runner := newFakeRunner()
	backend := &StackedBackend{GitBackend: &GitBackend{Runner: runner}, StackCLI: "gt"}

	err := backend.CreateBranch(context.Background(), "/work", "solo", BranchOptions{Base: "main"})
	require.NoError(t, err)

	for _, c := range runner.calls {
		assert.Equal(t, "git", c.name, "expected only plain git calls when not tracking a stack parent")
	}
}

func TestStackedBackend_Commit_RestacksByDefault(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["rev-parse HEAD "] = "abc\n"
	backend := &StackedBackend{GitBackend: &GitBackend{Runner: runner}, StackCLI: "gt"}

	_, err := backend.Commit(context.Background(), "/work", "msg", CommitOptions{})
	require.NoError(t, err)

	foundRestack := false
	for _, c := range runner.calls {
		if c.name == "gt" && len(c.args) == 1 && c.args[0] == "restack" {
			foundRestack = true
		}
	}
	assert.True(t, foundRestack)
}

func TestStackedBackend_Commit_SkipsRestackWhenRequested(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["rev-parse HEAD "] = "abc\n"
	backend := &StackedBackend{GitBackend: &GitBackend{Runner: runner}, StackCLI: "gt"}

	_, err := backend.Commit(context.Background(), "/work", "msg", CommitOptions{NoRestack: true})
	require.NoError(t, err)

	for _, c := range runner.calls {
		assert.NotEqual(t, "gt", c.name)
	}
}

func TestParseSubmitURLs(t *testing.T) {
	output := "Submitting stack...\nhttps://example.com/pr/1\nhttps://example.com/pr/2\ndone\n"
	urls := parseSubmitURLs(output)
	assert.Equal(t, []string{"https://example.com/pr/1", "https://example.com/pr/2"}, urls)
}

func TestParseSubmitURLs_Empty(t *testing.T) {
	assert.Empty(t, parseSubmitURLs("no links here"))
}
