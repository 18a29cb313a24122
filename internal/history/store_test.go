package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/models"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{
			name:   "creates database file",
			dbPath: filepath.Join(t.TempDir(), "history.db"),
		},
		{
			name:   "creates nested parent directories",
			dbPath: filepath.Join(t.TempDir(), "nested", "dir", "history.db"),
		},
		{
			name:   "handles in-memory database",
			dbPath: ":memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			defer store.Close()
		})
	}
}

func TestStore_RecordAndGetRun(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	result := &models.ExecutionResult{
		TotalDuration: 2 * time.Minute,
		Branches:      []string{"chopstack/setup-db"},
		Commits:       []string{"abc123"},
		PRUrls:        []string{"https://example.com/pr/1"},
		Tasks: []models.TaskExecutionRecord{
			{TaskID: "setup-db", Status: models.TaskStatusSuccess, Duration: time.Minute, CommitHash: "abc123"},
			{TaskID: "build-api", Status: models.TaskStatusFailure, Duration: time.Minute, Error: "tests failed"},
		},
	}

	runID, err := store.RecordRun(context.Background(), "sess-abc", "release-plan", "/plans/release.yaml", started, result)
	require.NoError(t, err)
	assert.NotZero(t, runID)

	run, tasks, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)

	assert.Equal(t, "sess-abc", run.SessionID)
	assert.Equal(t, "release-plan", run.PlanName)
	assert.Equal(t, "/plans/release.yaml", run.PlanPath)
	assert.Equal(t, 1, run.CompletedCount)
	assert.Equal(t, 1, run.FailedCount)
	assert.Equal(t, 2*time.Minute, run.TotalDuration)
	assert.Equal(t, []string{"chopstack/setup-db"}, run.Branches)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, started.Add(2*time.Minute), *run.CompletedAt)

	require.Len(t, tasks, 2)
	assert.Equal(t, "setup-db", tasks[0].TaskID)
	assert.Equal(t, models.TaskStatusSuccess, tasks[0].Status)
	assert.Equal(t, "build-api", tasks[1].TaskID)
	assert.Equal(t, models.TaskStatusFailure, tasks[1].Status)
	assert.Equal(t, "tests failed", tasks[1].Error)
}

func TestStore_GetRuns_OrdersMostRecentFirst(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	result := &models.ExecutionResult{Tasks: []models.TaskExecutionRecord{{TaskID: "t1", Status: models.TaskStatusSuccess}}}

	first, err := store.RecordRun(ctx, "sess-1", "plan", "/plans/p.yaml", base, result)
	require.NoError(t, err)
	second, err := store.RecordRun(ctx, "sess-2", "plan", "/plans/p.yaml", base.Add(time.Hour), result)
	require.NoError(t, err)

	runs, err := store.GetRuns(ctx, "/plans/p.yaml")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}

func TestStore_LatestRun_NoRunsReturnsErrNoRows(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, _, err = store.LatestRun(context.Background(), "/plans/never-run.yaml")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestIncompleteTasks_FiltersOutSuccess(t *testing.T) {
	tasks := []TaskRecord{
		{TaskID: "a", Status: models.TaskStatusSuccess},
		{TaskID: "b", Status: models.TaskStatusFailure},
		{TaskID: "c", Status: models.TaskStatusSkipped},
	}

	got := IncompleteTasks(tasks)
	assert.Equal(t, []string{"b", "c"}, got)
}
