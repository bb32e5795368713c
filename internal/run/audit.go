package run

import (
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Auditor appends one structured record per state transition, submission and
// judgement decision. The log is write-only for the engine; a failed append
// is logged and dropped, it never blocks or fails the triggering operation.
type Auditor struct {
	db *gorm.DB
}

func NewAuditor(db *gorm.DB) *Auditor {
	return &Auditor{db: db}
}

func (a *Auditor) append(runID, actor, typ string, payload models.JSONMap) {
	if a == nil || a.db == nil {
		return
	}
	rec := &models.AuditRecord{
		RunID:   runID,
		Actor:   actor,
		Type:    typ,
		Payload: payload,
	}
	if err := database.AppendAuditRecord(a.db, rec); err != nil {
		zap.S().Errorf("failed to append audit record %s for run %s: %v", typ, runID, err)
	}
}

func (a *Auditor) StateTransition(runID, actor string, from, to models.RunStatus) {
	a.append(runID, actor, "state_transition", models.JSONMap{
		"from": string(from),
		"to":   string(to),
	})
}

func (a *Auditor) TaskTransition(runID, actor, taskID, event string) {
	a.append(runID, actor, "task_"+event, models.JSONMap{"task_id": taskID})
}

func (a *Auditor) SubmissionPosted(runID string, sub *Submission, accepted bool, reason string) {
	payload := models.JSONMap{
		"submission_id": sub.ID,
		"task_id":       sub.TaskID,
		"team_id":       sub.TeamID,
		"accepted":      accepted,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	a.append(runID, sub.MemberID, "submission", payload)
}

func (a *Auditor) Judgement(runID, judgeID, answerSetID string, verdict models.VerdictStatus) {
	a.append(runID, judgeID, "judgement", models.JSONMap{
		"answer_set_id": answerSetID,
		"verdict":       string(verdict),
	})
}
