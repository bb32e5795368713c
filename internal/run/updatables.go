package run

import (
	"sync"
	"time"

	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

func activeStatus(status models.RunStatus) bool {
	return status != models.RunCreated
}

// scoresUpdatable recomputes scorer output for tasks dirtied by submission
// ingestion or judgement decisions. PREPARE phase so that every later
// updatable of the tick sees fresh scores.
type scoresUpdatable struct {
	StatefulUpdatable
	b *base

	tasksMu    sync.Mutex
	dirtyTasks map[string]bool
}

func newScoresUpdatable(b *base) *scoresUpdatable {
	return &scoresUpdatable{b: b, dirtyTasks: make(map[string]bool)}
}

func (u *scoresUpdatable) MarkTask(taskID string) {
	u.tasksMu.Lock()
	u.dirtyTasks[taskID] = true
	u.tasksMu.Unlock()
	u.MarkDirty()
}

func (u *scoresUpdatable) Phase() Phase { return PhasePrepare }

func (u *scoresUpdatable) ShouldRun(status models.RunStatus) bool {
	return activeStatus(status)
}

func (u *scoresUpdatable) Update(now time.Time) {
	if !u.shouldAct(now) {
		return
	}
	u.tasksMu.Lock()
	dirty := u.dirtyTasks
	u.dirtyTasks = make(map[string]bool)
	u.tasksMu.Unlock()
	if len(dirty) == 0 {
		return
	}
	u.b.recomputeScores(dirty)
}

// scoreboardUpdatable recomposes the boards. It is throttled by a minimum
// interval even when dirty, so a submission burst does not thrash clients.
type scoreboardUpdatable struct {
	StatefulUpdatable
	b *base
}

func newScoreboardUpdatable(b *base, interval time.Duration) *scoreboardUpdatable {
	u := &scoreboardUpdatable{b: b}
	u.interval = interval
	return u
}

func (u *scoreboardUpdatable) Phase() Phase { return PhaseMain }

func (u *scoreboardUpdatable) ShouldRun(status models.RunStatus) bool {
	return activeStatus(status)
}

func (u *scoreboardUpdatable) Update(now time.Time) {
	if !u.shouldAct(now) {
		return
	}
	u.b.recomputeBoards(now)
}

// endOnQuotaUpdatable auto-ends a running task once every eligible team
// reached the task's correct-submission quota.
type endOnQuotaUpdatable struct {
	b *base
}

func (u *endOnQuotaUpdatable) Phase() Phase { return PhaseMain }

func (u *endOnQuotaUpdatable) ShouldRun(status models.RunStatus) bool {
	return status == models.RunRunningTask || status == models.RunActive
}

func (u *endOnQuotaUpdatable) Update(now time.Time) {
	for _, task := range u.b.ops.runningTasks() {
		quota := task.Template.Rules.EndOnCorrectQuota
		if quota <= 0 {
			continue
		}
		if u.quotaReached(task, quota) {
			zap.S().Infof("run %s: task %s ended, every team reached its quota of %d", u.b.id, task.Template.Name, quota)
			u.b.ops.endTask(task, now, "quota reached")
		}
	}
}

func (u *endOnQuotaUpdatable) quotaReached(task *TaskRun, quota int) bool {
	u.b.mu.RLock()
	defer u.b.mu.RUnlock()
	correct := make(map[string]int)
	for _, sub := range task.Submissions {
		if sub.Correct() {
			correct[sub.TeamID]++
		}
	}
	for _, team := range u.b.ops.teamsForTask(task) {
		if correct[team] < quota {
			return false
		}
	}
	return true
}

// timeBonusUpdatable prolongs a running task when a correct submission lands
// inside the configured window before the deadline. Each submission is
// rewarded at most once.
type timeBonusUpdatable struct {
	b        *base
	rewarded map[string]bool
}

func (u *timeBonusUpdatable) Phase() Phase { return PhaseMain }

func (u *timeBonusUpdatable) ShouldRun(status models.RunStatus) bool {
	return status == models.RunRunningTask || status == models.RunActive
}

func (u *timeBonusUpdatable) Update(now time.Time) {
	for _, task := range u.b.ops.runningTasks() {
		rules := task.Template.Rules
		if rules.TimeBonusSeconds <= 0 || rules.TimeBonusWindowSeconds <= 0 {
			continue
		}
		window := time.Duration(rules.TimeBonusWindowSeconds) * time.Second
		bonus := time.Duration(rules.TimeBonusSeconds) * time.Second

		u.b.mu.Lock()
		if !task.Running() {
			u.b.mu.Unlock()
			continue
		}
		for _, sub := range task.Submissions {
			if u.rewarded[sub.ID] || !sub.Correct() {
				continue
			}
			u.rewarded[sub.ID] = true
			deadline := task.StartedAt.Add(task.Duration)
			if deadline.Sub(sub.PostedAt) <= window {
				task.Prolong(bonus)
				u.b.persist.MarkDirty()
				u.b.enqueue(ServerTaskUpdated, task.TeamID, map[string]interface{}{
					"task_id":      task.ID,
					"duration_ms":  task.Duration.Milliseconds(),
					"remaining_ms": task.Remaining(now).Milliseconds(),
				})
				zap.S().Infof("run %s: task %s prolonged by %s", u.b.id, task.Template.Name, bonus)
			}
		}
		u.b.mu.Unlock()
	}
}

// messageDispatchUpdatable flushes the outbound queue to the session sink.
// FINALIZE phase so clients see the tick's final state.
type messageDispatchUpdatable struct {
	b *base
}

func (u *messageDispatchUpdatable) Phase() Phase { return PhaseFinalize }

func (u *messageDispatchUpdatable) ShouldRun(models.RunStatus) bool { return true }

func (u *messageDispatchUpdatable) Update(time.Time) {
	u.b.queue.Drain(u.b.send)
}

// persistenceUpdatable writes the mutated aggregate back to the store, only
// when dirtied. Failed writes stay dirty and are retried on the next tick.
type persistenceUpdatable struct {
	StatefulUpdatable
	b *base
}

func newPersistenceUpdatable(b *base) *persistenceUpdatable {
	return &persistenceUpdatable{b: b}
}

func (u *persistenceUpdatable) Phase() Phase { return PhaseFinalize }

func (u *persistenceUpdatable) ShouldRun(models.RunStatus) bool { return true }

func (u *persistenceUpdatable) Update(now time.Time) {
	if !u.shouldAct(now) {
		return
	}
	u.b.persistTick()
}
