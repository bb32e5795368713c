package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

// ingest runs the filter → validate pipeline for a submission against a
// running task and appends it to the task's history. Called with the write
// lock held; the accept/reject result is returned synchronously while score
// propagation and persistence happen on later ticks via dirty flags.
func (b *base) ingest(sub *Submission, task *TaskRun) error {
	if len(sub.AnswerSets) == 0 {
		err := &RejectedError{Reason: "submission carries no answer sets"}
		b.rt.Audit.SubmissionPosted(b.id, sub, false, err.Reason)
		return err
	}

	sub.ID = uuid.New().String()
	sub.TaskID = task.ID
	sub.RunID = b.id
	if sub.PostedAt.IsZero() {
		sub.PostedAt = time.Now()
	}
	for _, as := range sub.AnswerSets {
		as.ID = uuid.New().String()
	}

	if err := task.Filters.Check(sub, task); err != nil {
		var reason string
		if rj, ok := err.(*RejectedError); ok {
			reason = rj.Reason
		}
		b.rt.Audit.SubmissionPosted(b.id, sub, false, reason)
		return err
	}

	for _, as := range sub.AnswerSets {
		task.Validator.Validate(as, sub, task)
		b.answerSets[as.ID] = &answerSetRef{set: as, sub: sub, task: task}
	}

	task.Submissions = append(task.Submissions, sub)
	b.pendingSubs = append(b.pendingSubs, sub)

	b.scores.MarkTask(task.ID)
	b.boards.MarkDirty()
	b.persist.MarkDirty()
	b.rt.Audit.SubmissionPosted(b.id, sub, true, "")
	return nil
}

// ResolveJudgement applies a judge's verdict to a deferred answer set. It is
// the only entry point that mutates an answer set from outside the
// validation pipeline.
func (b *base) ResolveJudgement(judgeID, answerSetID string, verdict models.VerdictStatus) error {
	switch verdict {
	case models.VerdictCorrect, models.VerdictWrong, models.VerdictUndecidable:
	default:
		return fmt.Errorf("verdict %s is not a legal judgement outcome", verdict)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ref, ok := b.answerSets[answerSetID]
	if !ok || !b.judge.Take(answerSetID) {
		return ErrUnknownJudgement
	}
	ref.set.Status = verdict
	ref.set.JudgedBy = judgeID
	b.pendingVerdicts = append(b.pendingVerdicts, verdictUpdate{
		answerSetID: answerSetID,
		status:      verdict,
		judgedBy:    judgeID,
	})

	b.scores.MarkTask(ref.task.ID)
	b.boards.MarkDirty()
	b.persist.MarkDirty()
	b.rt.Audit.Judgement(b.id, judgeID, answerSetID, verdict)
	return nil
}

// recomputeScores fully recomputes the scorer output of the given tasks from
// their authoritative submission histories.
func (b *base) recomputeScores(taskIDs map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, task := range b.tasks {
		if !taskIDs[task.ID] {
			continue
		}
		ctx := task.Context(b.ops.teamsForTask(task))
		b.taskScores[task.ID] = task.Scorer.ComputeScores(task.Submissions, ctx)
	}
}

// recomputeBoards recomposes every board from the latest per-task scores,
// appends the run's score time series and queues a scoreboard broadcast.
func (b *base) recomputeBoards(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scored := make([]ScoredTask, 0, len(b.tasks))
	for _, task := range b.tasks {
		scores, ok := b.taskScores[task.ID]
		if !ok {
			continue
		}
		scored = append(scored, ScoredTask{
			Task:     task,
			Scores:   scores,
			MaxScore: maxTaskPoints(task),
		})
	}

	teamIDs := b.tmpl.TeamIDs()
	for _, gb := range b.groupBoards {
		gb.Recompute(scored, teamIDs, now)
	}
	b.sumBoard.Recompute(scored, teamIDs, now)

	for _, entry := range b.sumBoard.Entries() {
		b.pendingTicks = append(b.pendingTicks, models.ScoreTick{
			RunID:     b.id,
			BoardName: b.sumBoard.Name(),
			TeamID:    entry.TeamID,
			Score:     entry.Score,
			CreatedAt: now,
		})
	}
	b.persist.MarkDirty()

	b.enqueue(ServerCompetitionUpdate, "", map[string]interface{}{
		"board":   b.sumBoard.Name(),
		"entries": b.sumBoard.Entries(),
	})
}

func maxTaskPoints(task *TaskRun) float64 {
	if v, ok := task.Template.Scoring.Params["max_points"]; ok {
		return v
	}
	switch task.Template.Scoring.Name {
	case "kis":
		return 100
	default:
		return 1000
	}
}

// persistTick writes the dirty aggregate back to the store. Snapshots are
// taken under the read lock; the writes run without it. On failure the
// pending work is requeued and the updatable stays dirty for the next tick.
func (b *base) persistTick() {
	if b.rt.DB == nil {
		return
	}

	// write lock: the snapshot also drains the pending queues
	b.mu.Lock()
	runRec := models.Run{
		ID:         b.id,
		Name:       b.name,
		TemplateID: b.tmpl.ID,
		Async:      b.async,
		Status:     b.status,
		StartedAt:  b.startedAt,
		EndedAt:    b.endedAt,
		CreatedAt:  b.createdAt,
		Properties: b.props,
	}
	taskRecs := make([]models.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		taskRecs = append(taskRecs, toTaskModel(b.id, t))
	}
	subs := b.pendingSubs
	verdicts := b.pendingVerdicts
	ticks := b.pendingTicks
	b.pendingSubs = nil
	b.pendingVerdicts = nil
	b.pendingTicks = nil
	b.mu.Unlock()

	var failed bool
	if err := database.UpdateRun(b.rt.DB, &runRec); err != nil {
		zap.S().Errorf("failed to persist run %s: %v", b.id, err)
		failed = true
	}
	for _, t := range taskRecs {
		rec := t
		if err := database.UpdateTask(b.rt.DB, &rec); err != nil {
			zap.S().Errorf("failed to persist task %s: %v", t.ID, err)
			failed = true
		}
	}
	remaining := subs[:0]
	for _, sub := range subs {
		rec := toSubmissionModel(sub)
		if err := database.CreateSubmission(b.rt.DB, &rec); err != nil {
			zap.S().Errorf("failed to persist submission %s: %v", sub.ID, err)
			remaining = append(remaining, sub)
		}
	}
	remainingVerdicts := verdicts[:0]
	for _, v := range verdicts {
		if err := database.UpdateAnswerSetStatus(b.rt.DB, v.answerSetID, v.status, v.judgedBy); err != nil {
			zap.S().Errorf("failed to persist judgement on %s: %v", v.answerSetID, err)
			remainingVerdicts = append(remainingVerdicts, v)
		}
	}
	if err := database.AppendScoreTicks(b.rt.DB, ticks); err != nil {
		zap.S().Errorf("failed to append score ticks for run %s: %v", b.id, err)
	}

	if failed || len(remaining) > 0 || len(remainingVerdicts) > 0 {
		b.mu.Lock()
		b.pendingSubs = append(remaining, b.pendingSubs...)
		b.pendingVerdicts = append(remainingVerdicts, b.pendingVerdicts...)
		b.mu.Unlock()
		b.persist.MarkDirty()
	}
}
