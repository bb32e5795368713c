package run

import (
	"time"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
)

// Answer is one element of an answer set: either a media item reference
// (optionally with a temporal segment) or free text.
type Answer struct {
	ItemName string `json:"item_name"`
	StartMS  *int64 `json:"start_ms"`
	EndMS    *int64 `json:"end_ms"`
	Text     string `json:"text"`
}

// HasSegment reports whether the answer carries a temporal range.
func (a *Answer) HasSegment() bool {
	return a.StartMS != nil && a.EndMS != nil
}

// AnswerSet is a batch of answers carrying one overall validation status.
// Status is derived by the validator (or a judge), never set by callers.
type AnswerSet struct {
	ID       string               `json:"id"`
	Status   models.VerdictStatus `json:"status"`
	JudgedBy string               `json:"judged_by"`
	Answers  []Answer             `json:"answers"`
}

// Submission is one team member's attempt against a task.
type Submission struct {
	ID       string    `json:"id"`
	TaskID   string    `json:"task_id"`
	RunID    string    `json:"run_id"`
	TeamID   string    `json:"team_id"`
	MemberID string    `json:"member_id"`
	PostedAt time.Time `json:"posted_at"`

	AnswerSets []*AnswerSet `json:"answer_sets"`
}

// Correct reports whether any answer set of the submission is correct.
func (s *Submission) Correct() bool {
	return s.hasStatus(models.VerdictCorrect)
}

// Wrong reports whether the submission was conclusively wrong: at least one
// wrong answer set and no correct one.
func (s *Submission) Wrong() bool {
	return !s.Correct() && s.hasStatus(models.VerdictWrong)
}

func (s *Submission) hasStatus(status models.VerdictStatus) bool {
	for _, as := range s.AnswerSets {
		if as.Status == status {
			return true
		}
	}
	return false
}

// TaskRun is one live task instance. It is created when the run transitions
// into task preparation and carries the instantiated filter, validator and
// scorer policies alongside the authoritative submission history. All fields
// are guarded by the owning manager's lock.
type TaskRun struct {
	ID       string
	Template *competition.TaskTemplate
	TeamID   string // empty for tasks shared by all teams

	StartedAt *time.Time
	EndedAt   *time.Time
	Duration  time.Duration // base duration plus rule-granted extensions

	Submissions []*Submission

	Filters   FilterChain
	Validator Validator
	Scorer    Scorer
}

// Running reports whether the task timer is active.
func (t *TaskRun) Running() bool {
	return t.StartedAt != nil && t.EndedAt == nil
}

// Elapsed returns the time since the task timer started, zero before start.
func (t *TaskRun) Elapsed(now time.Time) time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	if t.EndedAt != nil {
		return t.EndedAt.Sub(*t.StartedAt)
	}
	return now.Sub(*t.StartedAt)
}

// Remaining returns the time left on the (possibly extended) task timer.
func (t *TaskRun) Remaining(now time.Time) time.Duration {
	if t.StartedAt == nil {
		return t.Duration
	}
	rem := t.Duration - t.Elapsed(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// Prolong extends the running task's duration.
func (t *TaskRun) Prolong(d time.Duration) {
	t.Duration += d
}

// Context snapshots the task for a scorer invocation.
func (t *TaskRun) Context(teamIDs []string) TaskContext {
	ctx := TaskContext{
		TaskID:   t.ID,
		Duration: t.Duration,
		TeamIDs:  teamIDs,
	}
	if t.StartedAt != nil {
		ctx.StartedAt = *t.StartedAt
	}
	ctx.EndedAt = t.EndedAt
	return ctx
}

// TaskContext carries everything a scorer needs besides the submission
// history itself.
type TaskContext struct {
	TaskID    string
	StartedAt time.Time
	Duration  time.Duration
	EndedAt   *time.Time
	TeamIDs   []string
}

func toSubmissionModel(sub *Submission) models.Submission {
	rec := models.Submission{
		ID:       sub.ID,
		TaskID:   sub.TaskID,
		RunID:    sub.RunID,
		TeamID:   sub.TeamID,
		MemberID: sub.MemberID,
		PostedAt: sub.PostedAt,
	}
	for _, as := range sub.AnswerSets {
		asRec := models.AnswerSet{
			ID:           as.ID,
			SubmissionID: sub.ID,
			Status:       as.Status,
			JudgedBy:     as.JudgedBy,
		}
		for _, a := range as.Answers {
			asRec.Answers = append(asRec.Answers, models.Answer{
				AnswerSetID: as.ID,
				ItemName:    a.ItemName,
				StartMS:     a.StartMS,
				EndMS:       a.EndMS,
				Text:        a.Text,
			})
		}
		rec.AnswerSets = append(rec.AnswerSets, asRec)
	}
	return rec
}

// FromSubmissionModel reconstructs a runtime submission from its persisted
// record, e.g. to replay a task's history through a scorer.
func FromSubmissionModel(rec *models.Submission) *Submission {
	sub := &Submission{
		ID:       rec.ID,
		TaskID:   rec.TaskID,
		RunID:    rec.RunID,
		TeamID:   rec.TeamID,
		MemberID: rec.MemberID,
		PostedAt: rec.PostedAt,
	}
	for i := range rec.AnswerSets {
		asRec := &rec.AnswerSets[i]
		as := &AnswerSet{
			ID:       asRec.ID,
			Status:   asRec.Status,
			JudgedBy: asRec.JudgedBy,
		}
		for _, a := range asRec.Answers {
			as.Answers = append(as.Answers, Answer{
				ItemName: a.ItemName,
				StartMS:  a.StartMS,
				EndMS:    a.EndMS,
				Text:     a.Text,
			})
		}
		sub.AnswerSets = append(sub.AnswerSets, as)
	}
	return sub
}

func toTaskModel(runID string, t *TaskRun) models.Task {
	return models.Task{
		ID:           t.ID,
		RunID:        runID,
		TemplateName: t.Template.Name,
		GroupName:    t.Template.Group,
		TeamID:       t.TeamID,
		StartedAt:    t.StartedAt,
		EndedAt:      t.EndedAt,
		DurationMS:   t.Duration.Milliseconds(),
	}
}
