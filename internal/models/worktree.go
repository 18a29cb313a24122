package models

import "time"

// WorktreeContext describes a single task's isolated workspace: a worktree
// checked out on its own branch, rooted under the repository's shadow path.
type WorktreeContext struct {
	TaskID       string
	BranchName   string
	WorktreePath string // repo-relative, e.g. .chopstack/shadows/<taskId>
	AbsolutePath string
	BaseRef      string
	Created      time.Time
}
