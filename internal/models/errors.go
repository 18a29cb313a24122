package models

import "fmt"

// VcsError is returned by a VcsBackend operation that shells out to the
// underlying version-control tool. It carries the attempted command and
// the diagnostic output captured from it, per spec.md §4.4's "typed error
// carrying the attempted command and captured diagnostic output".
type VcsError struct {
	Op         string // the backend operation, e.g. "createBranch"
	Command    string // the shelled-out command line
	Output     string // captured stdout+stderr
	Underlying error
}

func (e *VcsError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("vcs %s failed (%s): %v\n%s", e.Op, e.Command, e.Underlying, e.Output)
	}
	return fmt.Sprintf("vcs %s failed: %v\n%s", e.Op, e.Underlying, e.Output)
}

func (e *VcsError) Unwrap() error { return e.Underlying }

// WorktreeCollisionError reports that a worktree or branch the engine was
// about to create already exists, most likely left over from a crashed
// prior run. Cleanup carries the exact command a user would run to clear it.
type WorktreeCollisionError struct {
	TaskID  string
	Path    string
	Branch  string
	Cleanup string
}

func (e *WorktreeCollisionError) Error() string {
	return fmt.Sprintf("task %s: worktree %s or branch %s already exists; clean up with: %s",
		e.TaskID, e.Path, e.Branch, e.Cleanup)
}

// TaskError attributes a failure to a specific task, used by the
// orchestrator and execution engine when a subprocess or infrastructure
// operation fails.
type TaskError struct {
	TaskID  string
	Message string
	Cause   error
}

func NewTaskError(taskID, message string, cause error) *TaskError {
	return &TaskError{TaskID: taskID, Message: message, Cause: cause}
}

func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task %s: %s: %v", e.TaskID, e.Message, e.Cause)
	}
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Message)
}

func (e *TaskError) Unwrap() error { return e.Cause }
