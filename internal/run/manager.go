package run

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

// Manager owns one run: its state machine, task lifecycle, client
// synchronization and submission ingestion. Externally invoked methods are
// safe for concurrent use; each manager runs its own tick loop goroutine.
//
// teamID parameters select the team scope on asynchronous runs and are
// ignored by synchronous ones.
type Manager interface {
	ID() string
	Name() string
	Template() *competition.Template
	Async() bool
	Status() models.RunStatus
	TeamStatus(teamID string) models.RunStatus

	Start(actor string) error
	Terminate(actor string) error
	GoToTask(actor, teamID string, index int) error
	NextTask(actor, teamID string) error
	PreviousTask(actor, teamID string) error
	StartTask(actor, teamID string) error
	AbortTask(actor, teamID string) error

	PostSubmission(sub *Submission) error
	ResolveJudgement(judgeID, answerSetID string, verdict models.VerdictStatus) error
	NextJudgement(judgeID string) *Judgement
	PendingJudgements() int

	HandleClientMessage(session SessionInfo, msg ClientMessage)
	SessionDisconnected(sessionID string)

	CurrentTask(teamID string) *TaskView
	ReadyState(teamID string) map[string]bool
	Boards() []BoardView

	Stop()
}

// TaskView is a read-only snapshot of a task for API consumers.
type TaskView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Group       string     `json:"group"`
	TeamID      string     `json:"team_id,omitempty"`
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	DurationMS  int64      `json:"duration_ms"`
	RemainingMS int64      `json:"remaining_ms"`
	Hint        competition.HintSpec `json:"hint"`
}

// BoardView is a read-only snapshot of a scoreboard.
type BoardView struct {
	Name    string        `json:"name"`
	Entries []ScoreEntry  `json:"entries"`
	History []SeriesPoint `json:"history,omitempty"`
}

// variantOps are the hooks a run variant provides to the shared machinery.
type variantOps interface {
	// autoTransitions performs the internal state transitions of one tick
	// (latch release, task timeout) and takes the write lock itself.
	autoTransitions(now time.Time)
	// runningTasks snapshots the currently running task instances.
	runningTasks() []*TaskRun
	// endTask force-ends a running task; it takes the write lock itself.
	endTask(t *TaskRun, now time.Time, reason string)
	// teamsForTask lists the team ids a task is scored for.
	teamsForTask(t *TaskRun) []string
}

type verdictUpdate struct {
	answerSetID string
	status      models.VerdictStatus
	judgedBy    string
}

type answerSetRef struct {
	set  *AnswerSet
	sub  *Submission
	task *TaskRun
}

// base carries the state and machinery shared by both run variants. The
// RWMutex guards every field below it; the latch, message queue and judge
// queue synchronize themselves because WebSocket goroutines write to them
// outside the tick cadence.
type base struct {
	id    string
	name  string
	tmpl  *competition.Template
	async bool
	rt    *Runtime
	ops   variantOps

	queue *MessageQueue
	judge *JudgementQueue

	props models.JSONMap

	mu        sync.RWMutex
	status    models.RunStatus
	createdAt time.Time
	startedAt *time.Time
	endedAt   *time.Time

	tasks      []*TaskRun
	taskScores map[string]map[string]float64
	answerSets map[string]*answerSetRef
	sessions   map[string]SessionInfo
	memberTeam map[string]string

	groupBoards []*MaxNormalizingBoard
	sumBoard    *SumAggregateBoard

	pendingSubs     []*Submission
	pendingVerdicts []verdictUpdate
	pendingTicks    []models.ScoreTick

	updatables []Updatable
	scores     *scoresUpdatable
	boards     *scoreboardUpdatable
	persist    *persistenceUpdatable

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newBase(name string, tmpl *competition.Template, rt *Runtime, async bool) (*base, error) {
	b := &base{
		id:         uuid.New().String(),
		name:       name,
		tmpl:       tmpl,
		async:      async,
		rt:         rt,
		queue:      NewMessageQueue(1024),
		judge:      NewJudgementQueue(),
		status:     models.RunCreated,
		createdAt:  time.Now(),
		taskScores: make(map[string]map[string]float64),
		answerSets: make(map[string]*answerSetRef),
		sessions:   make(map[string]SessionInfo),
		memberTeam: make(map[string]string),
		stopCh:     make(chan struct{}),
	}

	for _, team := range tmpl.Teams {
		for _, member := range team.Members {
			b.memberTeam[member] = team.ID
		}
	}

	// template facts frozen at creation, for inspection after the run ended
	b.props = models.JSONMap{
		"template_name": tmpl.Name,
		"team_count":    len(tmpl.Teams),
		"task_count":    len(tmpl.Tasks),
	}

	boards := make([]Scoreboard, 0, len(tmpl.TaskGroups))
	for _, group := range tmpl.TaskGroups {
		gb := NewMaxNormalizingBoard(group.Name, group.Name, 1000)
		b.groupBoards = append(b.groupBoards, gb)
		boards = append(boards, gb)
	}
	b.sumBoard = NewSumAggregateBoard("competition", boards)

	if rt.DB != nil {
		record := models.Run{
			ID:         b.id,
			Name:       name,
			TemplateID: tmpl.ID,
			Async:      async,
			Status:     models.RunCreated,
			Properties: b.props,
		}
		if err := database.CreateRun(rt.DB, &record); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// initUpdatables wires the tick work list in phase-then-declaration order and
// starts the loop. Called by the variant constructor after ops is set.
func (b *base) initUpdatables() {
	b.scores = newScoresUpdatable(b)
	b.boards = newScoreboardUpdatable(b, b.rt.Engine.ScoreboardInterval())
	b.persist = newPersistenceUpdatable(b)
	b.updatables = []Updatable{
		b.scores,
		b.boards,
		&endOnQuotaUpdatable{b: b},
		&timeBonusUpdatable{b: b, rewarded: make(map[string]bool)},
		&messageDispatchUpdatable{b: b},
		b.persist,
	}
	go b.loop()
}

// loop is the manager's dedicated tick goroutine. Internal transitions run
// first, then the updatables against a status snapshot. The loop survives
// any single tick failure and exits only after flushing the terminated run.
func (b *base) loop() {
	ticker := time.NewTicker(b.rt.Engine.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			b.ops.autoTransitions(now)

			b.mu.RLock()
			status := b.status
			b.mu.RUnlock()

			RunUpdatables(b.updatables, status, now)

			if status == models.RunTerminated {
				b.Stop()
				return
			}
		}
	}
}

func (b *base) ID() string                      { return b.id }
func (b *base) Name() string                    { return b.name }
func (b *base) Template() *competition.Template { return b.tmpl }
func (b *base) Async() bool                     { return b.async }

func (b *base) Status() models.RunStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *base) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *base) NextJudgement(judgeID string) *Judgement {
	return b.judge.Next(judgeID)
}

func (b *base) PendingJudgements() int {
	return b.judge.Pending()
}

// idle reports whether no task is selected as preparing/running, i.e. task
// transitions and termination are legal.
func idle(status models.RunStatus) bool {
	return status == models.RunActive || status == models.RunTaskEnded
}

// prepareTask instantiates a task from its template. Policy construction
// errors abort the preparation; a broken task never starts.
func (b *base) prepareTask(tt *competition.TaskTemplate, teamID string) (*TaskRun, error) {
	if err := b.tmpl.ValidateTask(tt); err != nil {
		return nil, &ConfigError{Task: tt.Name, Err: err}
	}
	filters, err := NewFilterChain(tt.Filters)
	if err != nil {
		return nil, &ConfigError{Task: tt.Name, Err: err}
	}
	validator, err := NewValidator(tt.Validation, b.tmpl, tt, b.judge)
	if err != nil {
		return nil, &ConfigError{Task: tt.Name, Err: err}
	}
	scorer, err := NewScorer(tt.Scoring)
	if err != nil {
		return nil, &ConfigError{Task: tt.Name, Err: err}
	}
	return &TaskRun{
		ID:        uuid.New().String(),
		Template:  tt,
		TeamID:    teamID,
		Duration:  time.Duration(tt.DurationSeconds) * time.Second,
		Filters:   filters,
		Validator: validator,
		Scorer:    scorer,
	}, nil
}

// enqueue queues an outbound message; teamID empty broadcasts to the whole
// run. Dispatch happens on the finalize phase of the tick loop.
func (b *base) enqueue(t ServerMessageType, teamID string, payload map[string]interface{}) {
	b.queue.Enqueue(ServerMessage{RunID: b.id, Type: t, Payload: payload}, teamID)
}

// send delivers one marshaled message to the matching sessions, best-effort.
func (b *base) send(data []byte, teamID string) {
	if b.rt.Sink == nil {
		return
	}
	for _, s := range b.rt.Sink.SessionsForRun(b.id) {
		if teamID != "" && s.TeamID != teamID {
			continue
		}
		if err := b.rt.Sink.Send(s.ID, data); err != nil {
			zap.S().Debugf("dropping message for session %s: %v", s.ID, err)
		}
	}
}

func (b *base) taskView(t *TaskRun, now time.Time) *TaskView {
	if t == nil {
		return nil
	}
	return &TaskView{
		ID:          t.ID,
		Name:        t.Template.Name,
		Group:       t.Template.Group,
		TeamID:      t.TeamID,
		StartedAt:   t.StartedAt,
		EndedAt:     t.EndedAt,
		DurationMS:  t.Duration.Milliseconds(),
		RemainingMS: t.Remaining(now).Milliseconds(),
		Hint:        t.Template.Hint,
	}
}

func (b *base) Boards() []BoardView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	views := make([]BoardView, 0, len(b.groupBoards)+1)
	for _, gb := range b.groupBoards {
		views = append(views, BoardView{Name: gb.Name(), Entries: gb.Entries(), History: gb.History()})
	}
	views = append(views, BoardView{Name: b.sumBoard.Name(), Entries: b.sumBoard.Entries(), History: b.sumBoard.History()})
	return views
}

// teamOf resolves the team a member belongs to.
func (b *base) teamOf(memberID string) (string, bool) {
	team, ok := b.memberTeam[memberID]
	return team, ok
}
