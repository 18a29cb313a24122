package vcsengine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskWithID(id string) models.Task {
	return models.NewTask(id, "Task "+id, "A task description long enough to pass the fifty character minimum check.")
}

// CreateWorktreesForTasks now takes a real lock file under
// <repoRoot>/<shadowPath>, so every test below needs a repoRoot that
// actually exists and is writable rather than the placeholder "/repo"
// path the pre-locking tests used.
func TestCreateWorktreesForTasks_CreatesOnePerTask(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{}
	engine := New(backend, DefaultConfig())

	tasks := []models.Task{newTaskWithID("t1"), newTaskWithID("t2")}
	contexts, err := engine.CreateWorktreesForTasks(context.Background(), tasks, "main", repoRoot)

	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "chopstack/t1", contexts[0].BranchName)
	assert.Equal(t, filepath.Join(repoRoot, ".chopstack/shadows/t1"), contexts[0].WorktreePath)
	assert.Equal(t, "main", contexts[0].BaseRef)
}

func TestCreateWorktreesForTasks_CollisionOnExistingBranch(t *testing.T) {
	repoRoot := t.TempDir()
	path := filepath.Join(repoRoot, ".chopstack/shadows/t1")
	backend := &fakeBackend{
		worktrees: []vcs.WorktreeRecord{{Path: path, Branch: "chopstack/t1"}},
	}
	engine := New(backend, DefaultConfig())

	_, err := engine.CreateWorktreesForTasks(context.Background(), []models.Task{newTaskWithID("t1")}, "main", repoRoot)

	require.Error(t, err)
	var collisionErr *models.WorktreeCollisionError
	require.ErrorAs(t, err, &collisionErr)
	assert.Equal(t, "t1", collisionErr.TaskID)
	assert.Contains(t, collisionErr.Cleanup, "git worktree remove --force")
	assert.Contains(t, collisionErr.Cleanup, "git branch -D chopstack/t1")
}

func TestCreateWorktreesForTasks_StopsAtFirstCollisionKeepingEarlierContexts(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{}
	engine := New(backend, DefaultConfig())

	// Nothing is seeded up front: the second task reuses t1's id, so it
	// collides with the worktree created for the first one during the call.
	backend.addWorktreeErr = nil
	tasks := []models.Task{newTaskWithID("t1"), newTaskWithID("t1")} // duplicate id forces a branch collision on the second

	contexts, err := engine.CreateWorktreesForTasks(context.Background(), tasks, "main", repoRoot)

	require.Error(t, err)
	assert.Len(t, contexts, 1, "the first task's worktree should remain recorded")
}

func TestCreateWorktreesForTasks_PropagatesBackendError(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{addWorktreeErr: errors.New("disk full")}
	engine := New(backend, DefaultConfig())

	_, err := engine.CreateWorktreesForTasks(context.Background(), []models.Task{newTaskWithID("t1")}, "main", repoRoot)
	require.Error(t, err)
}

func TestCreateWorktreesForTasks_CreatesShadowDirectoryAndLockFile(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{}
	engine := New(backend, DefaultConfig())

	_, err := engine.CreateWorktreesForTasks(context.Background(), []models.Task{newTaskWithID("t1")}, "main", repoRoot)
	require.NoError(t, err)

	shadowDir := filepath.Join(repoRoot, ".chopstack/shadows")
	info, err := os.Stat(shadowDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(engine.lockPath(repoRoot))
	require.NoError(t, err, "expected the worktree lock file to be created alongside the shadow directory")
}

func TestCreateWorktreesForTasks_ReleasesLockSoASecondCallSucceeds(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{}
	engine := New(backend, DefaultConfig())

	_, err := engine.CreateWorktreesForTasks(context.Background(), []models.Task{newTaskWithID("t1")}, "main", repoRoot)
	require.NoError(t, err)

	_, err = engine.CreateWorktreesForTasks(context.Background(), []models.Task{newTaskWithID("t2")}, "main", repoRoot)
	require.NoError(t, err, "the lock acquired by the first call must be released before it returns")
}

func TestCleanupWorktrees_RemovesAndDeletesBranchByDefault(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{}
	engine := New(backend, DefaultConfig())

	contexts := []models.WorktreeContext{
		{TaskID: "t1", BranchName: "chopstack/t1", WorktreePath: filepath.Join(repoRoot, ".chopstack/shadows/t1")},
	}

	err := engine.CleanupWorktrees(context.Background(), repoRoot, contexts, false)
	require.NoError(t, err)
}

func TestCleanupWorktrees_KeepsBranchWhenRequested(t *testing.T) {
	repoRoot := t.TempDir()
	backend := &fakeBackend{deleteBranchErr: errors.New("should not be called")}
	engine := New(backend, DefaultConfig())

	contexts := []models.WorktreeContext{
		{TaskID: "t1", BranchName: "chopstack/t1", WorktreePath: filepath.Join(repoRoot, ".chopstack/shadows/t1")},
	}

	err := engine.CleanupWorktrees(context.Background(), repoRoot, contexts, true)
	require.NoError(t, err)
}
