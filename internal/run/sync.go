package run

import (
	"time"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

// SynchronousRun drives all teams through the same task at the same time:
// one shared task instance, one run-wide ready latch, run-wide broadcasts.
type SynchronousRun struct {
	*base
	latch      *ReadyLatch
	currentIdx int
	current    *TaskRun
}

var _ Manager = (*SynchronousRun)(nil)

func NewSynchronousRun(name string, tmpl *competition.Template, rt *Runtime) (*SynchronousRun, error) {
	b, err := newBase(name, tmpl, rt, false)
	if err != nil {
		return nil, err
	}
	r := &SynchronousRun{base: b, latch: NewReadyLatch()}
	b.ops = r
	b.initUpdatables()
	rt.Register(r)
	return r, nil
}

func (r *SynchronousRun) TeamStatus(string) models.RunStatus {
	return r.Status()
}

func (r *SynchronousRun) Start(actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RunCreated {
		return illegalState("start", r.status)
	}
	now := time.Now()
	r.startedAt = &now
	r.transition(actor, models.RunActive)
	r.enqueue(ServerCompetitionStart, "", map[string]interface{}{"name": r.name})
	return nil
}

func (r *SynchronousRun) Terminate(actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !idle(r.status) {
		return illegalState("terminate", r.status)
	}
	now := time.Now()
	r.endedAt = &now
	r.transition(actor, models.RunTerminated)
	r.latch.Clear()
	r.enqueue(ServerCompetitionEnd, "", nil)
	return nil
}

func (r *SynchronousRun) GoToTask(actor, _ string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !idle(r.status) {
		return illegalState("goToTask", r.status)
	}
	if index < 0 || index >= len(r.tmpl.Tasks) {
		return ErrTaskOutOfRange
	}
	r.currentIdx = index
	r.status = models.RunActive
	r.enqueue(ServerTaskUpdated, "", map[string]interface{}{
		"index": index,
		"name":  r.tmpl.Tasks[index].Name,
	})
	return nil
}

func (r *SynchronousRun) NextTask(actor, teamID string) error {
	r.mu.RLock()
	idx := r.currentIdx + 1
	r.mu.RUnlock()
	return r.GoToTask(actor, teamID, idx)
}

func (r *SynchronousRun) PreviousTask(actor, teamID string) error {
	r.mu.RLock()
	idx := r.currentIdx - 1
	r.mu.RUnlock()
	return r.GoToTask(actor, teamID, idx)
}

// StartTask moves the run into task preparation: the task instance is
// created, every connected session is (re)registered on the latch, and the
// prepare broadcast goes out. The task timer does not start here.
func (r *SynchronousRun) StartTask(actor, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !idle(r.status) {
		return illegalState("startTask", r.status)
	}
	if r.currentIdx < 0 || r.currentIdx >= len(r.tmpl.Tasks) {
		return ErrTaskOutOfRange
	}
	task, err := r.prepareTask(&r.tmpl.Tasks[r.currentIdx], "")
	if err != nil {
		return err
	}
	r.current = task
	r.tasks = append(r.tasks, task)

	r.latch.Clear()
	for id := range r.sessions {
		r.latch.Register(id)
	}
	r.latch.Reset(r.rt.Engine.ReadyTimeout())

	r.transition(actor, models.RunPreparingTask)
	r.rt.Audit.TaskTransition(r.id, actor, task.ID, "prepare")
	r.enqueue(ServerTaskPrepare, "", map[string]interface{}{
		"task_id":     task.ID,
		"name":        task.Template.Name,
		"duration_ms": task.Duration.Milliseconds(),
	})
	r.persist.MarkDirty()
	return nil
}

func (r *SynchronousRun) AbortTask(actor, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RunPreparingTask && r.status != models.RunRunningTask {
		return illegalState("abortTask", r.status)
	}
	r.endCurrent(actor, time.Now(), "aborted")
	return nil
}

func (r *SynchronousRun) PostSubmission(sub *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RunRunningTask {
		return illegalState("postSubmission", r.status)
	}
	if sub.TeamID == "" {
		team, ok := r.teamOf(sub.MemberID)
		if !ok {
			return ErrUnknownTeam
		}
		sub.TeamID = team
	} else if _, ok := r.tmpl.TeamByID(sub.TeamID); !ok {
		return ErrUnknownTeam
	}
	return r.ingest(sub, r.current)
}

func (r *SynchronousRun) HandleClientMessage(session SessionInfo, msg ClientMessage) {
	switch msg.Type {
	case ClientRegister:
		r.mu.Lock()
		r.sessions[session.ID] = session
		preparing := r.status == models.RunPreparingTask
		r.mu.Unlock()
		if preparing {
			r.latch.Register(session.ID)
		}
	case ClientUnregister:
		r.mu.Lock()
		delete(r.sessions, session.ID)
		r.mu.Unlock()
		r.latch.Unregister(session.ID)
	case ClientAck:
		if err := r.latch.SetReady(session.ID); err != nil {
			zap.S().Debugf("run %s: ack from unregistered session %s", r.id, session.ID)
		}
	case ClientPing:
		// liveness only
	}
}

func (r *SynchronousRun) SessionDisconnected(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	r.latch.Unregister(sessionID)
}

func (r *SynchronousRun) CurrentTask(string) *TaskView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.taskView(r.current, time.Now())
}

func (r *SynchronousRun) ReadyState(string) map[string]bool {
	return r.latch.State()
}

// autoTransitions runs the internal transitions of one tick: releasing the
// ready latch into a running task, and ending a task whose time is up.
func (r *SynchronousRun) autoTransitions(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case models.RunPreparingTask:
		if r.latch.AllReadyOrTimedOut() {
			started := now
			r.current.StartedAt = &started
			r.transition("system", models.RunRunningTask)
			r.rt.Audit.TaskTransition(r.id, "system", r.current.ID, "start")
			r.enqueue(ServerTaskStart, "", map[string]interface{}{
				"task_id":     r.current.ID,
				"duration_ms": r.current.Duration.Milliseconds(),
			})
			r.persist.MarkDirty()
		}
	case models.RunRunningTask:
		if r.current.Elapsed(now) >= r.current.Duration {
			r.endCurrent("system", now, "timeout")
		}
	}
}

func (r *SynchronousRun) runningTasks() []*TaskRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status == models.RunRunningTask && r.current != nil {
		return []*TaskRun{r.current}
	}
	return nil
}

func (r *SynchronousRun) endTask(t *TaskRun, now time.Time, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != t || r.status != models.RunRunningTask {
		return
	}
	r.endCurrent("system", now, reason)
}

func (r *SynchronousRun) teamsForTask(*TaskRun) []string {
	return r.tmpl.TeamIDs()
}

// endCurrent closes the active task: end timestamp, end broadcast and
// persistence happen atomically under the write lock held by the caller.
func (r *SynchronousRun) endCurrent(actor string, now time.Time, reason string) {
	r.current.EndedAt = &now
	r.transition(actor, models.RunTaskEnded)
	r.rt.Audit.TaskTransition(r.id, actor, r.current.ID, "end")
	r.enqueue(ServerTaskEnd, "", map[string]interface{}{
		"task_id": r.current.ID,
		"reason":  reason,
	})
	r.scores.MarkTask(r.current.ID)
	r.boards.MarkDirty()
	r.persist.MarkDirty()
}

// transition records a status change; caller holds the write lock.
func (r *SynchronousRun) transition(actor string, to models.RunStatus) {
	from := r.status
	r.status = to
	r.rt.Audit.StateTransition(r.id, actor, from, to)
	r.persist.MarkDirty()
}
