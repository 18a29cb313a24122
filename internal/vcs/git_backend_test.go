package vcs

import (
	"context"
	"errors"
	"testing"

	"github.com/harrison/conductor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls   []recordedCall
	outputs map[string]string
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) key(args []string) string {
	key := ""
	for _, a := range args {
		key += a + " "
	}
	return key
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, recordedCall{dir: dir, name: name, args: args})
	key := f.key(args)
	return f.outputs[key], f.errs[key]
}

func TestGitBackend_Commit_StagesAndReturnsHash(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["commit -m msg "] = ""
	runner.outputs["rev-parse HEAD "] = "abc123\n"

	backend := &GitBackend{Runner: runner}
	hash, err := backend.Commit(context.Background(), "/work", "msg", CommitOptions{})

	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestGitBackend_Commit_StagesSpecificFiles(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["rev-parse HEAD "] = "deadbeef\n"

	backend := &GitBackend{Runner: runner}
	_, err := backend.Commit(context.Background(), "/work", "msg", CommitOptions{Files: []string{"a.go", "b.go"}})
	require.NoError(t, err)

	foundAdd := false
	for _, c := range runner.calls {
		if len(c.args) >= 1 && c.args[0] == "add" {
			assert.Equal(t, []string{"add", "a.go", "b.go"}, c.args)
			foundAdd = true
		}
	}
	assert.True(t, foundAdd, "expected a targeted `git add a.go b.go` call")
}

func TestGitBackend_Commit_PropagatesVcsError(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["add -A "] = errors.New("disk full")

	backend := &GitBackend{Runner: runner}
	_, err := backend.Commit(context.Background(), "/work", "msg", CommitOptions{})

	require.Error(t, err)
	var vcsErr *models.VcsError
	require.ErrorAs(t, err, &vcsErr)
	assert.Equal(t, "commit", vcsErr.Op)
}

func TestGitBackend_HasConflicts(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["diff --name-only --diff-filter=U "] = "a.go\nb.go\n"

	backend := &GitBackend{Runner: runner}
	has, err := backend.HasConflicts(context.Background(), "/work")

	require.NoError(t, err)
	assert.True(t, has)
}

func TestGitBackend_GetConflictedFiles_EmptyWhenClean(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["diff --name-only --diff-filter=U "] = ""

	backend := &GitBackend{Runner: runner}
	files, err := backend.GetConflictedFiles(context.Background(), "/work")

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGitBackend_Submit_ReturnsEmptyURLs(t *testing.T) {
	backend := &GitBackend{Runner: newFakeRunner()}
	urls, err := backend.Submit(context.Background(), "/work", SubmitOptions{})

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestParseWorktreePorcelain(t *testing.T) {
	output := "worktree /repo\nHEAD abc\nbranch refs/heads/main\n\n" +
		"worktree /repo/.chopstack/shadows/t1\nHEAD def\nbranch refs/heads/chopstack/t1\n\n"

	records := parseWorktreePorcelain(output)

	require.Len(t, records, 2)
	assert.Equal(t, "/repo", records[0].Path)
	assert.Equal(t, "main", records[0].Branch)
	assert.Equal(t, "/repo/.chopstack/shadows/t1", records[1].Path)
	assert.Equal(t, "chopstack/t1", records[1].Branch)
}

func TestGitBackend_AbortMerge_FallsBackToCherryPickAbort(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["merge --abort "] = errors.New("no merge in progress")

	backend := &GitBackend{Runner: runner}
	err := backend.AbortMerge(context.Background(), "/work")

	require.NoError(t, err)
	foundCherryPickAbort := false
	for _, c := range runner.calls {
		if len(c.args) >= 2 && c.args[0] == "cherry-pick" && c.args[1] == "--abort" {
			foundCherryPickAbort = true
		}
	}
	assert.True(t, foundCherryPickAbort)
}
