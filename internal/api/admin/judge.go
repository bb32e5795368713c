package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/database/models"
	"github.com/openvbs/arena/internal/util"
)

// nextJudgement hands the oldest pending answer set to the calling judge.
// 204 means the queue is empty.
func (h *Handler) nextJudgement(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	j := m.NextJudgement(c.GetString("userID"))
	if j == nil {
		c.Status(http.StatusNoContent)
		return
	}
	util.Success(c, j, "Judgement retrieved")
}

func (h *Handler) pendingJudgements(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	util.Success(c, gin.H{"pending": m.PendingJudgements()}, "Pending count retrieved")
}

func (h *Handler) postVerdict(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}

	var req struct {
		Verdict models.VerdictStatus `json:"verdict" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if err := m.ResolveJudgement(c.GetString("userID"), c.Param("answerSetID"), req.Verdict); err != nil {
		util.EngineError(c, err)
		return
	}
	util.Success(c, nil, "Verdict recorded")
}
