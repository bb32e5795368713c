package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/config"
	"github.com/openvbs/arena/internal/database/models"
)

// testRuntime ticks so slowly that tests drive autoTransitions by hand.
func testRuntime() *Runtime {
	return NewRuntime(nil, nil, config.Engine{
		TickIntervalMS:       60000,
		ScoreboardIntervalMS: 1,
		ReadyTimeoutSeconds:  3600,
	})
}

func managerTemplate() *competition.Template {
	return &competition.Template{
		ID:   "demo",
		Name: "Demo",
		Teams: []competition.Team{
			{ID: "red", Name: "Red", Members: []string{"alice", "bob"}},
			{ID: "blue", Name: "Blue", Members: []string{"carol"}},
		},
		TaskGroups: []competition.TaskGroup{{Name: "kis", Type: "kis"}},
		Tasks: []competition.TaskTemplate{
			{
				Name:            "kis-1",
				Group:           "kis",
				DurationSeconds: 60,
				Scoring:         competition.ScoringSpec{Name: "kis"},
				Validation:      competition.ValidationSpec{Name: "text"},
				Targets:         []competition.TargetSpec{{Text: "otter"}},
				Filters:         []competition.FilterSpec{{Name: "no-duplicates"}},
			},
			{
				Name:            "kis-2",
				Group:           "kis",
				DurationSeconds: 60,
				Scoring:         competition.ScoringSpec{Name: "kis"},
				Validation:      competition.ValidationSpec{Name: "judge"},
				Targets:         []competition.TargetSpec{{Text: "heron"}},
			},
		},
	}
}

func newTestSyncRun(t *testing.T) *SynchronousRun {
	t.Helper()
	r, err := NewSynchronousRun("test", managerTemplate(), testRuntime())
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestSynchronousRunStateMachine(t *testing.T) {
	r := newTestSyncRun(t)
	now := time.Now()

	assert.Equal(t, models.RunCreated, r.Status())

	// task control before start is illegal
	require.True(t, IsStateConflict(r.StartTask("admin", "")))
	require.True(t, IsStateConflict(r.Terminate("admin")))

	require.NoError(t, r.Start("admin"))
	assert.Equal(t, models.RunActive, r.Status())
	require.True(t, IsStateConflict(r.Start("admin")))

	require.ErrorIs(t, r.GoToTask("admin", "", 5), ErrTaskOutOfRange)
	require.ErrorIs(t, r.GoToTask("admin", "", -1), ErrTaskOutOfRange)
	require.NoError(t, r.GoToTask("admin", "", 1))
	require.NoError(t, r.PreviousTask("admin", ""))

	// no submissions outside a running task
	require.True(t, IsStateConflict(r.PostSubmission(textSub("", "alice", "otter"))))

	require.NoError(t, r.StartTask("admin", ""))
	assert.Equal(t, models.RunPreparingTask, r.Status())
	require.True(t, IsStateConflict(r.StartTask("admin", "")))
	require.True(t, IsStateConflict(r.Terminate("admin")))

	// no sessions registered: the latch is vacuously ready
	r.autoTransitions(now)
	assert.Equal(t, models.RunRunningTask, r.Status())
	require.True(t, IsStateConflict(r.StartTask("admin", "")))
	assert.Equal(t, models.RunRunningTask, r.Status())

	// timer expiry ends the task
	r.autoTransitions(now.Add(61 * time.Second))
	assert.Equal(t, models.RunTaskEnded, r.Status())

	// TaskEnded is idle: moving on and terminating are legal
	require.NoError(t, r.Terminate("admin"))
	assert.Equal(t, models.RunTerminated, r.Status())
}

func TestSynchronousRunLatchDrivenStart(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))

	alice := SessionInfo{ID: "s1", UserID: "alice", TeamID: "red"}
	carol := SessionInfo{ID: "s2", UserID: "carol", TeamID: "blue"}
	r.HandleClientMessage(alice, ClientMessage{Type: ClientRegister})
	r.HandleClientMessage(carol, ClientMessage{Type: ClientRegister})

	require.NoError(t, r.StartTask("admin", ""))
	now := time.Now()

	r.autoTransitions(now)
	assert.Equal(t, models.RunPreparingTask, r.Status())

	r.HandleClientMessage(alice, ClientMessage{Type: ClientAck})
	r.autoTransitions(now)
	assert.Equal(t, models.RunPreparingTask, r.Status())
	assert.Equal(t, map[string]bool{"s1": true, "s2": false}, r.ReadyState(""))

	r.HandleClientMessage(carol, ClientMessage{Type: ClientAck})
	r.autoTransitions(now)
	assert.Equal(t, models.RunRunningTask, r.Status())

	view := r.CurrentTask("")
	require.NotNil(t, view)
	assert.Equal(t, "kis-1", view.Name)
	assert.NotNil(t, view.StartedAt)
}

func TestSynchronousRunDisconnectReleasesLatch(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))

	alice := SessionInfo{ID: "s1", UserID: "alice", TeamID: "red"}
	carol := SessionInfo{ID: "s2", UserID: "carol", TeamID: "blue"}
	r.HandleClientMessage(alice, ClientMessage{Type: ClientRegister})
	r.HandleClientMessage(carol, ClientMessage{Type: ClientRegister})
	require.NoError(t, r.StartTask("admin", ""))

	r.HandleClientMessage(alice, ClientMessage{Type: ClientAck})
	r.SessionDisconnected("s2")

	r.autoTransitions(time.Now())
	assert.Equal(t, models.RunRunningTask, r.Status())
}

func TestSubmissionPipeline(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))
	require.NoError(t, r.StartTask("admin", ""))
	r.autoTransitions(time.Now())
	require.Equal(t, models.RunRunningTask, r.Status())

	// team resolved from the member, verdict from the validator
	sub := textSub("", "alice", "otter")
	require.NoError(t, r.PostSubmission(sub))
	assert.Equal(t, "red", sub.TeamID)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.VerdictCorrect, sub.AnswerSets[0].Status)

	wrong := textSub("", "carol", "beaver")
	require.NoError(t, r.PostSubmission(wrong))
	assert.Equal(t, models.VerdictWrong, wrong.AnswerSets[0].Status)

	// unknown member cannot be mapped to a team
	require.ErrorIs(t, r.PostSubmission(textSub("", "mallory", "otter")), ErrUnknownTeam)
	// unknown explicit team is rejected too
	require.ErrorIs(t, r.PostSubmission(textSub("green", "alice", "otter")), ErrUnknownTeam)

	// a duplicate is rejected and leaves no trace in the history
	dup := textSub("", "bob", "otter")
	err := r.PostSubmission(dup)
	require.True(t, IsRejected(err))
	r.mu.RLock()
	assert.Len(t, r.current.Submissions, 2)
	r.mu.RUnlock()

	// empty answer sets are rejected outright
	err = r.PostSubmission(&Submission{MemberID: "alice"})
	require.True(t, IsRejected(err))
}

func TestScoreboardFlowThroughUpdatables(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))
	require.NoError(t, r.StartTask("admin", ""))
	start := time.Now()
	r.autoTransitions(start)

	require.NoError(t, r.PostSubmission(textSub("", "alice", "otter")))

	now := start.Add(time.Second)
	RunUpdatables(r.updatables, r.Status(), now)

	boards := r.Boards()
	require.Len(t, boards, 2) // group board + competition sum
	var kis BoardView
	for _, b := range boards {
		if b.Name == "kis" {
			kis = b
		}
	}
	require.NotEmpty(t, kis.Entries)
	byTeam := map[string]float64{}
	for _, e := range kis.Entries {
		byTeam[e.TeamID] = e.Score
	}
	assert.Greater(t, byTeam["red"], 0.0)
	assert.Equal(t, 0.0, byTeam["blue"])
	require.Len(t, kis.History, 1)
}

func TestJudgementFlow(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))
	require.NoError(t, r.GoToTask("admin", "", 1)) // the judged task
	require.NoError(t, r.StartTask("admin", ""))
	r.autoTransitions(time.Now())

	sub := textSub("", "alice", "contested answer")
	require.NoError(t, r.PostSubmission(sub))
	asID := sub.AnswerSets[0].ID
	assert.Equal(t, models.VerdictIndeterminate, sub.AnswerSets[0].Status)
	assert.Equal(t, 1, r.PendingJudgements())

	j := r.NextJudgement("judge-1")
	require.NotNil(t, j)
	assert.Equal(t, asID, j.AnswerSetID)
	assert.Equal(t, "red", j.TeamID)

	// INDETERMINATE is not a legal judgement outcome
	require.Error(t, r.ResolveJudgement("judge-1", asID, models.VerdictIndeterminate))

	require.NoError(t, r.ResolveJudgement("judge-1", asID, models.VerdictCorrect))
	assert.Equal(t, models.VerdictCorrect, sub.AnswerSets[0].Status)
	assert.Equal(t, "judge-1", sub.AnswerSets[0].JudgedBy)
	assert.Equal(t, 0, r.PendingJudgements())

	// resolving twice, or resolving an unknown set, fails
	require.ErrorIs(t, r.ResolveJudgement("judge-1", asID, models.VerdictWrong), ErrUnknownJudgement)
	require.ErrorIs(t, r.ResolveJudgement("judge-1", "nope", models.VerdictWrong), ErrUnknownJudgement)
}

func TestTaskAbort(t *testing.T) {
	r := newTestSyncRun(t)
	require.NoError(t, r.Start("admin"))
	require.True(t, IsStateConflict(r.AbortTask("admin", "")))

	require.NoError(t, r.StartTask("admin", ""))
	require.NoError(t, r.AbortTask("admin", ""))
	assert.Equal(t, models.RunTaskEnded, r.Status())

	// an ended task can be restarted
	require.NoError(t, r.StartTask("admin", ""))
	r.autoTransitions(time.Now())
	assert.Equal(t, models.RunRunningTask, r.Status())
}

func newTestAsyncRun(t *testing.T) *AsynchronousRun {
	t.Helper()
	r, err := NewAsynchronousRun("test", managerTemplate(), testRuntime())
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestAsynchronousRunPerTeamIsolation(t *testing.T) {
	r := newTestAsyncRun(t)
	require.NoError(t, r.Start("admin"))
	now := time.Now()

	require.ErrorIs(t, r.StartTask("admin", "green"), ErrUnknownTeam)

	require.NoError(t, r.StartTask("admin", "red"))
	r.autoTransitions(now)
	assert.Equal(t, models.RunRunningTask, r.TeamStatus("red"))
	assert.Equal(t, models.RunActive, r.TeamStatus("blue"))

	// the other team has no current task and cannot submit
	assert.Nil(t, r.CurrentTask("blue"))
	require.True(t, IsStateConflict(r.PostSubmission(textSub("", "carol", "otter"))))

	sub := textSub("", "alice", "otter")
	require.NoError(t, r.PostSubmission(sub))
	assert.Equal(t, "red", sub.TeamID)

	// termination waits for every team to be idle
	require.True(t, IsStateConflict(r.Terminate("admin")))

	r.autoTransitions(now.Add(61 * time.Second))
	assert.Equal(t, models.RunTaskEnded, r.TeamStatus("red"))
	require.NoError(t, r.Terminate("admin"))
	assert.Equal(t, models.RunTerminated, r.Status())
}

func TestAsynchronousRunIndependentProgress(t *testing.T) {
	r := newTestAsyncRun(t)
	require.NoError(t, r.Start("admin"))
	now := time.Now()

	require.NoError(t, r.GoToTask("admin", "blue", 1))
	require.NoError(t, r.StartTask("admin", "red"))
	require.NoError(t, r.StartTask("admin", "blue"))
	r.autoTransitions(now)

	red := r.CurrentTask("red")
	blue := r.CurrentTask("blue")
	require.NotNil(t, red)
	require.NotNil(t, blue)
	assert.Equal(t, "kis-1", red.Name)
	assert.Equal(t, "kis-2", blue.Name)
	assert.Equal(t, "red", red.TeamID)

	// aborting one team leaves the other running
	require.NoError(t, r.AbortTask("admin", "blue"))
	assert.Equal(t, models.RunTaskEnded, r.TeamStatus("blue"))
	assert.Equal(t, models.RunRunningTask, r.TeamStatus("red"))
}

func TestAsynchronousRunTeamScopedLatch(t *testing.T) {
	r := newTestAsyncRun(t)
	require.NoError(t, r.Start("admin"))

	alice := SessionInfo{ID: "s1", UserID: "alice", TeamID: "red"}
	carol := SessionInfo{ID: "s2", UserID: "carol", TeamID: "blue"}
	r.HandleClientMessage(alice, ClientMessage{Type: ClientRegister})
	r.HandleClientMessage(carol, ClientMessage{Type: ClientRegister})

	require.NoError(t, r.StartTask("admin", "red"))
	now := time.Now()
	r.autoTransitions(now)
	// only the red session is on red's latch
	assert.Equal(t, models.RunPreparingTask, r.TeamStatus("red"))
	assert.Equal(t, map[string]bool{"s1": false}, r.ReadyState("red"))

	// the other team's ack does not release red's latch
	r.HandleClientMessage(carol, ClientMessage{Type: ClientAck})
	r.autoTransitions(now)
	assert.Equal(t, models.RunPreparingTask, r.TeamStatus("red"))

	r.HandleClientMessage(alice, ClientMessage{Type: ClientAck})
	r.autoTransitions(now)
	assert.Equal(t, models.RunRunningTask, r.TeamStatus("red"))
}

func TestStartTaskWithoutTasks(t *testing.T) {
	tmpl := managerTemplate()
	tmpl.Tasks = nil

	sr, err := NewSynchronousRun("taskless", tmpl, testRuntime())
	require.NoError(t, err)
	t.Cleanup(sr.Stop)
	require.NoError(t, sr.Start("admin"))
	require.ErrorIs(t, sr.StartTask("admin", ""), ErrTaskOutOfRange)
	assert.Equal(t, models.RunActive, sr.Status())

	ar, err := NewAsynchronousRun("taskless", tmpl, testRuntime())
	require.NoError(t, err)
	t.Cleanup(ar.Stop)
	require.NoError(t, ar.Start("admin"))
	require.ErrorIs(t, ar.StartTask("admin", "red"), ErrTaskOutOfRange)
	assert.Equal(t, models.RunActive, ar.TeamStatus("red"))
}

func TestConfigErrorAbortsPreparation(t *testing.T) {
	tmpl := managerTemplate()
	tmpl.Tasks[0].Scoring.Name = "bogus"
	r, err := NewSynchronousRun("broken", tmpl, testRuntime())
	require.NoError(t, err)
	t.Cleanup(r.Stop)

	require.NoError(t, r.Start("admin"))
	err = r.StartTask("admin", "")
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	// the broken task never left the idle state
	assert.Equal(t, models.RunActive, r.Status())
}
