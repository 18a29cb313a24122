package eventbus

import "github.com/harrison/conductor/internal/models"

// TaskProgressPhase is the coarse phase reported on TopicTaskProgress.
type TaskProgressPhase string

const (
	ProgressQueued      TaskProgressPhase = "queued"
	ProgressExecuting   TaskProgressPhase = "executing"
	ProgressIntegrating TaskProgressPhase = "integrating"
)

// TaskStartPayload is published on TopicTaskStart.
type TaskStartPayload struct {
	Task    models.Task
	Context map[string]interface{}
}

// TaskProgressPayload is published on TopicTaskProgress.
type TaskProgressPayload struct {
	TaskID  string
	Phase   TaskProgressPhase
	Message string
}

// TaskCompletePayload is published on TopicTaskComplete.
type TaskCompletePayload struct {
	TaskID       string
	Success      bool
	FilesChanged []string
}

// TaskFailedPayload is published on TopicTaskFailed.
type TaskFailedPayload struct {
	TaskID string
	Error  string
}

// StreamDataPayload is published on TopicStreamData, carrying one adapter
// stream token for a running task.
type StreamDataPayload struct {
	TaskID string
	Event  models.StreamEvent
}

// VcsBranchCreatedPayload is published on TopicVcsBranchCreated.
type VcsBranchCreatedPayload struct {
	BranchName   string
	ParentBranch string
}

// VcsCommitPayload is published on TopicVcsCommit.
type VcsCommitPayload struct {
	BranchName   string
	Message      string
	FilesChanged []string
}
