package run

import (
	"time"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

// AsynchronousRun lets every team walk the task list at its own pace: one
// task instance, timer and ready latch per team, team-scoped broadcasts. The
// synchronization protocol is the same as the synchronous run's, instantiated
// per team instead of once per run.
type AsynchronousRun struct {
	*base
	teams map[string]*teamState
}

type teamState struct {
	status     models.RunStatus
	currentIdx int
	current    *TaskRun
	latch      *ReadyLatch
}

var _ Manager = (*AsynchronousRun)(nil)

func NewAsynchronousRun(name string, tmpl *competition.Template, rt *Runtime) (*AsynchronousRun, error) {
	b, err := newBase(name, tmpl, rt, true)
	if err != nil {
		return nil, err
	}
	r := &AsynchronousRun{base: b, teams: make(map[string]*teamState)}
	for _, team := range tmpl.Teams {
		r.teams[team.ID] = &teamState{status: models.RunCreated, latch: NewReadyLatch()}
	}
	b.ops = r
	b.initUpdatables()
	rt.Register(r)
	return r, nil
}

func (r *AsynchronousRun) TeamStatus(teamID string) models.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ts, ok := r.teams[teamID]; ok {
		return ts.status
	}
	return r.status
}

func (r *AsynchronousRun) Start(actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RunCreated {
		return illegalState("start", r.status)
	}
	now := time.Now()
	r.startedAt = &now
	r.transition(actor, models.RunActive)
	for _, ts := range r.teams {
		ts.status = models.RunActive
	}
	r.enqueue(ServerCompetitionStart, "", map[string]interface{}{"name": r.name})
	return nil
}

func (r *AsynchronousRun) Terminate(actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RunActive {
		return illegalState("terminate", r.status)
	}
	for teamID, ts := range r.teams {
		if !idle(ts.status) {
			zap.S().Warnf("run %s: cannot terminate, team %s still in %s", r.id, teamID, ts.status)
			return illegalState("terminate", ts.status)
		}
	}
	now := time.Now()
	r.endedAt = &now
	r.transition(actor, models.RunTerminated)
	for _, ts := range r.teams {
		ts.status = models.RunTerminated
		ts.latch.Clear()
	}
	r.enqueue(ServerCompetitionEnd, "", nil)
	return nil
}

func (r *AsynchronousRun) team(teamID string) (*teamState, error) {
	ts, ok := r.teams[teamID]
	if !ok {
		return nil, ErrUnknownTeam
	}
	return ts, nil
}

func (r *AsynchronousRun) GoToTask(actor, teamID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, err := r.team(teamID)
	if err != nil {
		return err
	}
	if !idle(ts.status) {
		return illegalState("goToTask", ts.status)
	}
	if index < 0 || index >= len(r.tmpl.Tasks) {
		return ErrTaskOutOfRange
	}
	ts.currentIdx = index
	ts.status = models.RunActive
	r.enqueue(ServerTaskUpdated, teamID, map[string]interface{}{
		"index": index,
		"name":  r.tmpl.Tasks[index].Name,
	})
	return nil
}

func (r *AsynchronousRun) NextTask(actor, teamID string) error {
	r.mu.RLock()
	idx := 0
	if ts, ok := r.teams[teamID]; ok {
		idx = ts.currentIdx + 1
	}
	r.mu.RUnlock()
	return r.GoToTask(actor, teamID, idx)
}

func (r *AsynchronousRun) PreviousTask(actor, teamID string) error {
	r.mu.RLock()
	idx := -1
	if ts, ok := r.teams[teamID]; ok {
		idx = ts.currentIdx - 1
	}
	r.mu.RUnlock()
	return r.GoToTask(actor, teamID, idx)
}

func (r *AsynchronousRun) StartTask(actor, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, err := r.team(teamID)
	if err != nil {
		return err
	}
	if !idle(ts.status) {
		return illegalState("startTask", ts.status)
	}
	if ts.currentIdx < 0 || ts.currentIdx >= len(r.tmpl.Tasks) {
		return ErrTaskOutOfRange
	}
	task, err := r.prepareTask(&r.tmpl.Tasks[ts.currentIdx], teamID)
	if err != nil {
		return err
	}
	ts.current = task
	r.tasks = append(r.tasks, task)

	ts.latch.Clear()
	for id, session := range r.sessions {
		if session.TeamID == teamID {
			ts.latch.Register(id)
		}
	}
	ts.latch.Reset(r.rt.Engine.ReadyTimeout())

	ts.status = models.RunPreparingTask
	r.rt.Audit.TaskTransition(r.id, actor, task.ID, "prepare")
	r.enqueue(ServerTaskPrepare, teamID, map[string]interface{}{
		"task_id":     task.ID,
		"name":        task.Template.Name,
		"duration_ms": task.Duration.Milliseconds(),
	})
	r.persist.MarkDirty()
	return nil
}

func (r *AsynchronousRun) AbortTask(actor, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, err := r.team(teamID)
	if err != nil {
		return err
	}
	if ts.status != models.RunPreparingTask && ts.status != models.RunRunningTask {
		return illegalState("abortTask", ts.status)
	}
	r.endTeamTask(actor, teamID, ts, time.Now(), "aborted")
	return nil
}

func (r *AsynchronousRun) PostSubmission(sub *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.TeamID == "" {
		team, ok := r.teamOf(sub.MemberID)
		if !ok {
			return ErrUnknownTeam
		}
		sub.TeamID = team
	}
	ts, err := r.team(sub.TeamID)
	if err != nil {
		return err
	}
	if ts.status != models.RunRunningTask {
		return illegalState("postSubmission", ts.status)
	}
	return r.ingest(sub, ts.current)
}

func (r *AsynchronousRun) HandleClientMessage(session SessionInfo, msg ClientMessage) {
	switch msg.Type {
	case ClientRegister:
		r.mu.Lock()
		r.sessions[session.ID] = session
		var latch *ReadyLatch
		if ts, ok := r.teams[session.TeamID]; ok && ts.status == models.RunPreparingTask {
			latch = ts.latch
		}
		r.mu.Unlock()
		if latch != nil {
			latch.Register(session.ID)
		}
	case ClientUnregister:
		r.mu.Lock()
		delete(r.sessions, session.ID)
		ts := r.teams[session.TeamID]
		r.mu.Unlock()
		if ts != nil {
			ts.latch.Unregister(session.ID)
		}
	case ClientAck:
		r.mu.RLock()
		ts := r.teams[session.TeamID]
		r.mu.RUnlock()
		if ts == nil {
			return
		}
		if err := ts.latch.SetReady(session.ID); err != nil {
			zap.S().Debugf("run %s: ack from unregistered session %s", r.id, session.ID)
		}
	case ClientPing:
		// liveness only
	}
}

func (r *AsynchronousRun) SessionDisconnected(sessionID string) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	var ts *teamState
	if ok {
		ts = r.teams[session.TeamID]
	}
	r.mu.Unlock()
	if ts != nil {
		ts.latch.Unregister(sessionID)
	}
}

func (r *AsynchronousRun) CurrentTask(teamID string) *TaskView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ts, ok := r.teams[teamID]; ok {
		return r.taskView(ts.current, time.Now())
	}
	return nil
}

func (r *AsynchronousRun) ReadyState(teamID string) map[string]bool {
	r.mu.RLock()
	ts := r.teams[teamID]
	r.mu.RUnlock()
	if ts == nil {
		return nil
	}
	return ts.latch.State()
}

func (r *AsynchronousRun) autoTransitions(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for teamID, ts := range r.teams {
		switch ts.status {
		case models.RunPreparingTask:
			if ts.latch.AllReadyOrTimedOut() {
				started := now
				ts.current.StartedAt = &started
				ts.status = models.RunRunningTask
				r.rt.Audit.TaskTransition(r.id, "system", ts.current.ID, "start")
				r.enqueue(ServerTaskStart, teamID, map[string]interface{}{
					"task_id":     ts.current.ID,
					"duration_ms": ts.current.Duration.Milliseconds(),
				})
				r.persist.MarkDirty()
			}
		case models.RunRunningTask:
			if ts.current.Elapsed(now) >= ts.current.Duration {
				r.endTeamTask("system", teamID, ts, now, "timeout")
			}
		}
	}
}

func (r *AsynchronousRun) runningTasks() []*TaskRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*TaskRun
	for _, ts := range r.teams {
		if ts.status == models.RunRunningTask && ts.current != nil {
			out = append(out, ts.current)
		}
	}
	return out
}

func (r *AsynchronousRun) endTask(t *TaskRun, now time.Time, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for teamID, ts := range r.teams {
		if ts.current == t && ts.status == models.RunRunningTask {
			r.endTeamTask("system", teamID, ts, now, reason)
			return
		}
	}
}

// teamsForTask: an asynchronous task is scored for its owning team only.
func (r *AsynchronousRun) teamsForTask(t *TaskRun) []string {
	return []string{t.TeamID}
}

func (r *AsynchronousRun) endTeamTask(actor, teamID string, ts *teamState, now time.Time, reason string) {
	ts.current.EndedAt = &now
	ts.status = models.RunTaskEnded
	r.rt.Audit.TaskTransition(r.id, actor, ts.current.ID, "end")
	r.enqueue(ServerTaskEnd, teamID, map[string]interface{}{
		"task_id": ts.current.ID,
		"reason":  reason,
	})
	r.scores.MarkTask(ts.current.ID)
	r.boards.MarkDirty()
	r.persist.MarkDirty()
}

func (r *AsynchronousRun) transition(actor string, to models.RunStatus) {
	from := r.status
	r.status = to
	r.rt.Audit.StateTransition(r.id, actor, from, to)
	r.persist.MarkDirty()
}
