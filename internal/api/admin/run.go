package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/run"
	"github.com/openvbs/arena/internal/util"
)

type taskControlRequest struct {
	TeamID string `json:"team_id"` // async runs only; ignored for synchronous
	Index  int    `json:"index"`   // goto only
}

func (h *Handler) getAllRuns(c *gin.Context) {
	runs, err := database.GetAllRuns(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, runs, "Runs retrieved")
}

func (h *Handler) createRun(c *gin.Context) {
	var req struct {
		Name       string `json:"name" binding:"required"`
		TemplateID string `json:"template_id" binding:"required"`
		Async      bool   `json:"async"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	tmpl, ok := h.templates[req.TemplateID]
	if !ok {
		util.Error(c, http.StatusNotFound, "template not found")
		return
	}

	var (
		m   run.Manager
		err error
	)
	if req.Async {
		m, err = run.NewAsynchronousRun(req.Name, tmpl, h.runtime)
	} else {
		m, err = run.NewSynchronousRun(req.Name, tmpl, h.runtime)
	}
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{"id": m.ID(), "async": m.Async()}, "Run created")
}

func (h *Handler) getRun(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		r, err := database.GetRun(h.db, c.Param("id"))
		if err != nil {
			util.Error(c, http.StatusNotFound, "run not found")
			return
		}
		util.Success(c, r, "Run retrieved")
		return
	}

	teamStatus := map[string]string{}
	if m.Async() {
		for _, team := range m.Template().Teams {
			teamStatus[team.ID] = string(m.TeamStatus(team.ID))
		}
	}
	util.Success(c, gin.H{
		"id":                 m.ID(),
		"name":               m.Name(),
		"template_id":        m.Template().ID,
		"async":              m.Async(),
		"status":             m.Status(),
		"team_status":        teamStatus,
		"pending_judgements": m.PendingJudgements(),
		"boards":             m.Boards(),
	}, "Run retrieved")
}

func (h *Handler) startRun(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.Start(actor)
	})
}

func (h *Handler) terminateRun(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.Terminate(actor)
	})
}

func (h *Handler) goToTask(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.GoToTask(actor, req.TeamID, req.Index)
	})
}

func (h *Handler) nextTask(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.NextTask(actor, req.TeamID)
	})
}

func (h *Handler) previousTask(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.PreviousTask(actor, req.TeamID)
	})
}

func (h *Handler) startTask(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.StartTask(actor, req.TeamID)
	})
}

func (h *Handler) abortTask(c *gin.Context) {
	h.runControl(c, func(m run.Manager, actor string, req taskControlRequest) error {
		return m.AbortTask(actor, req.TeamID)
	})
}

// runControl funnels every state-machine operation through one place: lookup,
// optional body decode, engine error mapping.
func (h *Handler) runControl(c *gin.Context, op func(m run.Manager, actor string, req taskControlRequest) error) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}

	var req taskControlRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, err)
			return
		}
	}

	if err := op(m, c.GetString("userID"), req); err != nil {
		util.EngineError(c, err)
		return
	}
	util.Success(c, gin.H{"status": m.Status()}, "OK")
}

func (h *Handler) getAuditLog(c *gin.Context) {
	recs, err := database.GetAuditRecords(h.db, c.Param("id"), 500)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, recs, "Audit log retrieved")
}
