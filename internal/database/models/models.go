package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// RunStatus mirrors the in-memory run state machine so an interrupted run can
// be recognized (and archived) on restart.
type RunStatus string

const (
	RunCreated       RunStatus = "Created"
	RunActive        RunStatus = "Active"
	RunPreparingTask RunStatus = "PreparingTask"
	RunRunningTask   RunStatus = "RunningTask"
	RunTaskEnded     RunStatus = "TaskEnded"
	RunTerminated    RunStatus = "Terminated"
)

// VerdictStatus is the validation status of one answer set.
type VerdictStatus string

const (
	VerdictCorrect       VerdictStatus = "Correct"
	VerdictWrong         VerdictStatus = "Wrong"
	VerdictIndeterminate VerdictStatus = "Indeterminate"
	VerdictUndecidable   VerdictStatus = "Undecidable"
)

// JSONMap is a helper type for storing JSON data in the database.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, &m)
}

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleJudge       Role = "judge"
	RoleParticipant Role = "participant"
)

type User struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	OIDCSubject  *string `gorm:"uniqueIndex" json:"-"`
	Username     string  `gorm:"uniqueIndex" json:"username"`
	PasswordHash string  `json:"-"`
	DisplayName  string  `json:"display_name"`
	Role         Role    `json:"role"`
	TeamID       string  `gorm:"index" json:"team_id"`
}

// Run is the persisted form of one competition execution. It is created in
// Created status, updated by the persistence updatable whenever the owning
// manager dirties it, and finalized exactly once on termination.
type Run struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name       string     `json:"name"`
	TemplateID string     `gorm:"index" json:"template_id"`
	Async      bool       `json:"async"`
	Status     RunStatus  `gorm:"index" json:"status"`
	StartedAt  *time.Time `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	Properties JSONMap    `gorm:"type:text" json:"properties"`

	Tasks []Task `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"tasks"`
}

// Task is one timed challenge instance. Synchronous runs share one Task per
// template across all teams (TeamID empty); asynchronous runs create one per
// team.
type Task struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	RunID        string     `gorm:"index" json:"run_id"`
	TemplateName string     `json:"template_name"`
	GroupName    string     `json:"group_name"`
	TeamID       string     `gorm:"index" json:"team_id"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	DurationMS   int64      `json:"duration_ms"` // includes rule-granted extensions

	Submissions []Submission `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"submissions"`
}

type Submission struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TaskID   string    `gorm:"index" json:"task_id"`
	RunID    string    `gorm:"index" json:"run_id"`
	TeamID   string    `gorm:"index" json:"team_id"`
	MemberID string    `gorm:"index" json:"member_id"`
	PostedAt time.Time `json:"posted_at"`

	AnswerSets []AnswerSet `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"answer_sets"`
}

type AnswerSet struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	SubmissionID string        `gorm:"index" json:"submission_id"`
	Status       VerdictStatus `gorm:"index" json:"status"`
	JudgedBy     string        `json:"judged_by"` // judge user id, empty for machine verdicts

	Answers []Answer `gorm:"foreignKey:AnswerSetID;constraint:OnDelete:CASCADE" json:"answers"`
}

type Answer struct {
	ID        uint `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time

	AnswerSetID string `gorm:"index" json:"answer_set_id"`
	ItemName    string `json:"item_name"`
	StartMS     *int64 `json:"start_ms"`
	EndMS       *int64 `json:"end_ms"`
	Text        string `json:"text"`
}

// ScoreTick is one appended point of a scoreboard time series.
type ScoreTick struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	RunID     string `gorm:"index"`
	BoardName string `gorm:"index"`
	TeamID    string `gorm:"index"`
	GroupName string
	Score     float64
}

// AuditRecord is an append-only structured event. The engine writes it and
// never reads it back for decision-making.
type AuditRecord struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	RunID   string  `gorm:"index"`
	Actor   string  `gorm:"index"`
	Type    string  `gorm:"index"`
	Payload JSONMap `gorm:"type:text"`
}
