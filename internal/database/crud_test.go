package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/database/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Init(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	return db
}

func TestRunPropertiesRoundTrip(t *testing.T) {
	db := testDB(t)
	require.NoError(t, CreateRun(db, &models.Run{
		ID:         "run-1",
		Name:       "demo",
		TemplateID: "vbs",
		Status:     models.RunCreated,
		Properties: models.JSONMap{"template_name": "VBS", "team_count": 2},
	}))

	run, err := GetRun(db, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "VBS", run.Properties["template_name"])
	assert.EqualValues(t, 2, run.Properties["team_count"])
}

func TestTaskCRUD(t *testing.T) {
	db := testDB(t)
	first := models.Task{
		ID:           "task-1",
		RunID:        "run-1",
		TemplateName: "kis-1",
		GroupName:    "kis",
		DurationMS:   60000,
		CreatedAt:    time.Now().Add(-time.Minute),
	}
	second := models.Task{
		ID:           "task-2",
		RunID:        "run-1",
		TemplateName: "kis-2",
		GroupName:    "kis",
		DurationMS:   60000,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, CreateTask(db, &first))
	require.NoError(t, CreateTask(db, &second))

	// a time-bonus rule extends the duration after creation
	first.DurationMS = 90000
	require.NoError(t, UpdateTask(db, &first))

	tasks, err := GetTasksByRunID(db, "run-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, "task-2", tasks[1].ID)
	assert.EqualValues(t, 90000, tasks[0].DurationMS)
}

func TestSubmissionHistoryRoundTrip(t *testing.T) {
	db := testDB(t)
	base := time.Now().Truncate(time.Second)
	early := models.Submission{
		ID:       "sub-1",
		TaskID:   "task-1",
		RunID:    "run-1",
		TeamID:   "red",
		MemberID: "alice",
		PostedAt: base,
		AnswerSets: []models.AnswerSet{
			{
				ID:     "as-1",
				Status: models.VerdictCorrect,
				Answers: []models.Answer{
					{AnswerSetID: "as-1", Text: "otter"},
				},
			},
		},
	}
	late := models.Submission{
		ID:       "sub-2",
		TaskID:   "task-1",
		RunID:    "run-1",
		TeamID:   "blue",
		MemberID: "bob",
		PostedAt: base.Add(time.Second),
		AnswerSets: []models.AnswerSet{
			{ID: "as-2", Status: models.VerdictWrong},
		},
	}
	// insert newest first; the history query must reorder by posting time
	require.NoError(t, CreateSubmission(db, &late))
	require.NoError(t, CreateSubmission(db, &early))

	sub, err := GetSubmission(db, "sub-1")
	require.NoError(t, err)
	require.Len(t, sub.AnswerSets, 1)
	require.Len(t, sub.AnswerSets[0].Answers, 1)
	assert.Equal(t, "otter", sub.AnswerSets[0].Answers[0].Text)

	require.NoError(t, UpdateAnswerSetStatus(db, "as-2", models.VerdictCorrect, "judge-1"))

	history, err := GetSubmissionsByTaskID(db, "task-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub-1", history[0].ID)
	assert.Equal(t, "sub-2", history[1].ID)
	assert.Equal(t, models.VerdictCorrect, history[1].AnswerSets[0].Status)
	assert.Equal(t, "judge-1", history[1].AnswerSets[0].JudgedBy)
}
