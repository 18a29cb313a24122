// Package history persists one row per completed execution run to a SQLite
// database, so a user can list past stacks or resume a partially-failed
// one without re-decomposing the plan. Grounded on the teacher's adaptive
// learning store (internal/learning/store.go): an embedded schema applied
// on open, a thin sql.DB wrapper, and a RecordX/GetX method pair per
// entity, generalized from that store's task-execution-plus-QC-verdict
// learning records onto chopstack's plan-run-plus-task-status records.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/conductor/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Run is one recorded execution of a plan.
type Run struct {
	ID             int64
	SessionID      string
	PlanName       string
	PlanPath       string
	StartedAt      time.Time
	CompletedAt    *time.Time
	TotalDuration  time.Duration
	CompletedCount int
	FailedCount    int
	SkippedCount   int
	Branches       []string
	Commits        []string
	PRUrls         []string
}

// TaskRecord is one task's recorded outcome within a Run.
type TaskRecord struct {
	TaskID     string
	Status     models.TaskStatus
	Duration   time.Duration
	Error      string
	CommitHash string
}

// Store manages the SQLite-backed execution history database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if necessary) the history database at dbPath
// and applies its schema.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a completed ExecutionResult as a new run, tagged with
// sessionID (the uuid chopstack assigned this run at start, shared with
// its file-logger run-log name so a recorded run and its log are always
// correlatable), along with one task_executions row per task, and returns
// the new run's id.
func (s *Store) RecordRun(ctx context.Context, sessionID, planName, planPath string, startedAt time.Time, result *models.ExecutionResult) (int64, error) {
	branches, err := json.Marshal(result.Branches)
	if err != nil {
		return 0, fmt.Errorf("marshal branches: %w", err)
	}
	commits, err := json.Marshal(result.Commits)
	if err != nil {
		return 0, fmt.Errorf("marshal commits: %w", err)
	}
	prURLs, err := json.Marshal(result.PRUrls)
	if err != nil {
		return 0, fmt.Errorf("marshal pr urls: %w", err)
	}

	completed, failed, skipped := result.Summarize()
	completedAt := startedAt.Add(result.TotalDuration)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(session_id, plan_name, plan_path, started_at, completed_at, total_duration_ms, completed_count, failed_count, skipped_count, branches, commits, pr_urls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, planName, planPath, startedAt, completedAt, result.TotalDuration.Milliseconds(),
		completed, failed, skipped, string(branches), string(commits), string(prURLs),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	for _, task := range result.Tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_executions (run_id, task_id, status, duration_ms, error_message, commit_hash)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, task.TaskID, string(task.Status), task.Duration.Milliseconds(), task.Error, task.CommitHash,
		); err != nil {
			return 0, fmt.Errorf("insert task execution for %s: %w", task.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// GetRuns returns every recorded run for planPath, most recent first.
func (s *Store) GetRuns(ctx context.Context, planPath string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, plan_name, plan_path, started_at, completed_at, total_duration_ms, completed_count, failed_count, skipped_count, branches, commits, pr_urls
		FROM runs WHERE plan_path = ? ORDER BY id DESC`, planPath)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by id along with its per-task records, or
// sql.ErrNoRows if no such run exists.
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, []TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, plan_name, plan_path, started_at, completed_at, total_duration_ms, completed_count, failed_count, skipped_count, branches, commits, pr_urls
		FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if err != nil {
		return nil, nil, err
	}

	tasks, err := s.getTaskRecords(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, tasks, nil
}

// LatestRun returns the most recently recorded run for planPath, or
// sql.ErrNoRows if the plan has never been executed.
func (s *Store) LatestRun(ctx context.Context, planPath string) (*Run, []TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, plan_name, plan_path, started_at, completed_at, total_duration_ms, completed_count, failed_count, skipped_count, branches, commits, pr_urls
		FROM runs WHERE plan_path = ? ORDER BY id DESC LIMIT 1`, planPath)

	run, err := scanRun(row)
	if err != nil {
		return nil, nil, err
	}

	tasks, err := s.getTaskRecords(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, tasks, nil
}

func (s *Store) getTaskRecords(ctx context.Context, runID int64) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, status, duration_ms, error_message, commit_hash
		FROM task_executions WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query task executions: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var status string
		var durationMs int64
		if err := rows.Scan(&t.TaskID, &status, &durationMs, &t.Error, &t.CommitHash); err != nil {
			return nil, fmt.Errorf("scan task execution: %w", err)
		}
		t.Status = models.TaskStatus(status)
		t.Duration = time.Duration(durationMs) * time.Millisecond
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task executions: %w", err)
	}
	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting scanRun
// serve GetRuns (multi-row) and GetRun/LatestRun (single-row) alike.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var branches, commits, prURLs string
	var totalDurationMs int64

	err := row.Scan(
		&run.ID, &run.SessionID, &run.PlanName, &run.PlanPath, &run.StartedAt, &completedAt,
		&totalDurationMs, &run.CompletedCount, &run.FailedCount, &run.SkippedCount,
		&branches, &commits, &prURLs,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.TotalDuration = time.Duration(totalDurationMs) * time.Millisecond
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(branches), &run.Branches); err != nil {
		return nil, fmt.Errorf("unmarshal branches: %w", err)
	}
	if err := json.Unmarshal([]byte(commits), &run.Commits); err != nil {
		return nil, fmt.Errorf("unmarshal commits: %w", err)
	}
	if err := json.Unmarshal([]byte(prURLs), &run.PRUrls); err != nil {
		return nil, fmt.Errorf("unmarshal pr urls: %w", err)
	}
	return run, nil
}

// IncompleteTasks returns the task ids from tasks whose status was not
// models.TaskStatusSuccess, the set a `chopstack resume` command would
// re-run.
func IncompleteTasks(tasks []TaskRecord) []string {
	var ids []string
	for _, t := range tasks {
		if t.Status != models.TaskStatusSuccess {
			ids = append(ids, t.TaskID)
		}
	}
	return ids
}
