package vcsengine

import (
	"context"
	"errors"
	"testing"

	"github.com/harrison/conductor/internal/eventbus"
	"github.com/harrison/conductor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnhancer struct {
	result models.CommitMessage
	err    error
	called bool
}

func (f *fakeEnhancer) Enhance(ctx context.Context, task models.Task, deterministic models.CommitMessage) (models.CommitMessage, error) {
	f.called = true
	if f.err != nil {
		return models.CommitMessage{}, f.err
	}
	return f.result, nil
}

func TestIntegrateCommit_UsesDeterministicMessageWithoutEnhancer(t *testing.T) {
	backend := &fakeBackend{commitHash: "abc123"}
	task := newTaskWithID("t1")
	wc := models.WorktreeContext{TaskID: "t1", BranchName: "chopstack/t1", WorktreePath: "/repo/.chopstack/shadows/t1"}

	hash, err := IntegrateCommit(context.Background(), backend, nil, nil, task, wc, []string{"a.go"})

	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestIntegrateCommit_FallsBackWhenEnhancerErrors(t *testing.T) {
	backend := &fakeBackend{commitHash: "abc123"}
	enhancer := &fakeEnhancer{err: errors.New("llm unavailable")}
	task := newTaskWithID("t1")
	wc := models.WorktreeContext{TaskID: "t1", BranchName: "chopstack/t1"}

	hash, err := IntegrateCommit(context.Background(), backend, nil, enhancer, task, wc, nil)

	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
	assert.True(t, enhancer.called)
}

func TestIntegrateCommit_UsesEnhancedMessageOnSuccess(t *testing.T) {
	backend := &fakeBackend{commitHash: "abc123"}
	bus := eventbus.New()
	var received eventbus.VcsCommitPayload
	bus.Subscribe(eventbus.TopicVcsCommit, func(topic eventbus.Topic, payload interface{}) {
		received = payload.(eventbus.VcsCommitPayload)
	})
	enhancer := &fakeEnhancer{result: models.CommitMessage{Subject: "feat: a better subject"}}
	task := newTaskWithID("t1")
	wc := models.WorktreeContext{TaskID: "t1", BranchName: "chopstack/t1"}

	_, err := IntegrateCommit(context.Background(), backend, bus, enhancer, task, wc, nil)

	require.NoError(t, err)
	assert.True(t, enhancer.called)
	assert.Equal(t, "feat: a better subject", received.Message)
}

func TestIntegrateCommit_PublishesVcsCommitEvent(t *testing.T) {
	backend := &fakeBackend{commitHash: "abc123"}
	bus := eventbus.New()
	var received eventbus.VcsCommitPayload
	bus.Subscribe(eventbus.TopicVcsCommit, func(topic eventbus.Topic, payload interface{}) {
		received = payload.(eventbus.VcsCommitPayload)
	})

	task := newTaskWithID("t1")
	wc := models.WorktreeContext{TaskID: "t1", BranchName: "chopstack/t1"}

	_, err := IntegrateCommit(context.Background(), backend, bus, nil, task, wc, []string{"a.go"})

	require.NoError(t, err)
	assert.Equal(t, "chopstack/t1", received.BranchName)
	assert.Equal(t, []string{"a.go"}, received.FilesChanged)
}

func TestIntegrateCommit_PropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{commitErr: errors.New("nothing to commit")}
	task := newTaskWithID("t1")
	wc := models.WorktreeContext{TaskID: "t1"}

	_, err := IntegrateCommit(context.Background(), backend, nil, nil, task, wc, nil)
	require.Error(t, err)
}
