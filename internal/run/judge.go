package run

import (
	"sync"
	"time"
)

// Judgement is one answer set waiting for (or handed to) a human judge. It
// snapshots the answers for display; the verdict is written back through the
// owning manager's ResolveJudgement entry point, never through this struct.
type Judgement struct {
	AnswerSetID  string    `json:"answer_set_id"`
	SubmissionID string    `json:"submission_id"`
	TaskID       string    `json:"task_id"`
	TeamID       string    `json:"team_id"`
	Answers      []Answer  `json:"answers"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	OpenedBy     string    `json:"opened_by"` // judge who fetched it, empty while queued
}

// JudgementQueue holds answer sets deferred to human judgement. The deferring
// validator enqueues from the ingesting caller's goroutine while judges
// dequeue from API handlers, so the queue synchronizes itself.
type JudgementQueue struct {
	mu      sync.Mutex
	order   []string
	pending map[string]*Judgement
}

func NewJudgementQueue() *JudgementQueue {
	return &JudgementQueue{pending: make(map[string]*Judgement)}
}

func (q *JudgementQueue) Enqueue(as *AnswerSet, sub *Submission, task *TaskRun) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[as.ID]; ok {
		return
	}
	answers := make([]Answer, len(as.Answers))
	copy(answers, as.Answers)
	q.pending[as.ID] = &Judgement{
		AnswerSetID:  as.ID,
		SubmissionID: sub.ID,
		TaskID:       task.ID,
		TeamID:       sub.TeamID,
		Answers:      answers,
		EnqueuedAt:   time.Now(),
	}
	q.order = append(q.order, as.ID)
}

// Next hands the oldest unopened judgement to a judge. It stays pending until
// resolved, so a judge that walks away does not lose the item for good.
func (q *JudgementQueue) Next(judgeID string) *Judgement {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		j, ok := q.pending[id]
		if !ok || j.OpenedBy != "" {
			continue
		}
		j.OpenedBy = judgeID
		copied := *j
		return &copied
	}
	return nil
}

// Take removes a pending judgement once a verdict arrived. It returns false
// if the answer set was never deferred or is already resolved.
func (q *JudgementQueue) Take(answerSetID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[answerSetID]; !ok {
		return false
	}
	delete(q.pending, answerSetID)
	for i, id := range q.order {
		if id == answerSetID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *JudgementQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
