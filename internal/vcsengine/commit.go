package vcsengine

import (
	"context"
	"fmt"

	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/vcs"
)

// CommitMessageEnhancer is an optional LLM-assisted commit message
// generator. Any failure must be swallowed by the caller, which falls back
// to models.DeterministicCommitMessage — spec.md §4.5's mandatory
// requirement that commit generation never hard-depends on an external
// call.
type CommitMessageEnhancer interface {
	Enhance(ctx context.Context, task models.Task, deterministic models.CommitMessage) (models.CommitMessage, error)
}

// IntegrateCommit implements spec.md §4.5's commit-integration step: once
// a task's adapter has reported success, stage filesChanged inside the
// task's worktree, generate a commit message, and commit it via the
// backend. The resulting commit hash is returned for the caller to record
// on the task. enhancer may be nil, in which case the deterministic
// message is used directly.
func IntegrateCommit(ctx context.Context, backend vcs.Backend, bus *eventbus.Bus, enhancer CommitMessageEnhancer, task models.Task, wc models.WorktreeContext, filesChanged []string) (string, error) {
	message := models.DeterministicCommitMessage(task)

	if enhancer != nil {
		if enhanced, err := enhancer.Enhance(ctx, task, message); err == nil {
			message = enhanced
		}
		// A failed enhancement is not reported as an error: the
		// deterministic message is always an acceptable outcome.
	}

	hash, err := backend.Commit(ctx, wc.WorktreePath, message.BuildFullCommitMessage(), vcs.CommitOptions{Files: filesChanged})
	if err != nil {
		return "", fmt.Errorf("commit task %s: %w", task.ID, err)
	}

	if bus != nil {
		bus.Publish(eventbus.TopicVcsCommit, eventbus.VcsCommitPayload{
			BranchName:   wc.BranchName,
			Message:      message.BuildFullCommitMessage(),
			FilesChanged: filesChanged,
		})
	}

	return hash, nil
}
