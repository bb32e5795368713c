package user

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/run"
	"github.com/openvbs/arena/internal/util"
)

type submitRequest struct {
	AnswerSets []struct {
		Answers []run.Answer `json:"answers" binding:"required"`
	} `json:"answer_sets" binding:"required"`
}

// postSubmission ingests one attempt against the caller's current task. A
// filter rejection comes back as 422 with the reason; the submission is then
// not part of the run history.
func (h *Handler) postSubmission(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	userID := c.GetString("userID")
	sub := &run.Submission{
		RunID:    m.ID(),
		MemberID: userID,
		PostedAt: time.Now(),
	}
	if user, err := database.GetUserByID(h.db, userID); err == nil {
		sub.TeamID = user.TeamID
	}
	for _, as := range req.AnswerSets {
		sub.AnswerSets = append(sub.AnswerSets, &run.AnswerSet{Answers: as.Answers})
	}

	if err := m.PostSubmission(sub); err != nil {
		util.EngineError(c, err)
		return
	}

	util.Success(c, gin.H{
		"id":          sub.ID,
		"answer_sets": sub.AnswerSets,
	}, "Submission accepted")
}
