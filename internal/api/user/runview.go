package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/run"
	"github.com/openvbs/arena/internal/util"
)

type runSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TemplateID string `json:"template_id"`
	Async      bool   `json:"async"`
	Status     string `json:"status"`
	Live       bool   `json:"live"`
}

func (h *Handler) getAllRuns(c *gin.Context) {
	runs, err := database.GetAllRuns(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]runSummary, 0, len(runs))
	for _, r := range runs {
		s := runSummary{
			ID:         r.ID,
			Name:       r.Name,
			TemplateID: r.TemplateID,
			Async:      r.Async,
			Status:     string(r.Status),
		}
		// A live manager carries fresher state than the persisted row.
		if m, ok := h.runtime.Get(r.ID); ok {
			s.Live = true
			s.Status = string(m.Status())
		}
		out = append(out, s)
	}
	util.Success(c, out, "Runs retrieved")
}

func (h *Handler) getRun(c *gin.Context) {
	id := c.Param("id")
	if m, ok := h.runtime.Get(id); ok {
		util.Success(c, gin.H{
			"id":          m.ID(),
			"name":        m.Name(),
			"template_id": m.Template().ID,
			"async":       m.Async(),
			"status":      m.Status(),
			"live":        true,
		}, "Run retrieved")
		return
	}

	r, err := database.GetRun(h.db, id)
	if err != nil {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	util.Success(c, r, "Run retrieved")
}

func (h *Handler) getScoreboards(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	util.Success(c, m.Boards(), "Scoreboards retrieved")
}

// getScoreSeries serves the persisted score trend of one board, so it also
// works for terminated runs.
func (h *Handler) getScoreSeries(c *gin.Context) {
	ticks, err := database.GetScoreSeries(h.db, c.Param("id"), c.Param("board"))
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, ticks, "Score series retrieved")
}

func (h *Handler) getCurrentTask(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	teamID := h.teamForRequest(c, m)
	view := m.CurrentTask(teamID)
	if view == nil {
		util.Error(c, http.StatusNotFound, "no current task")
		return
	}
	util.Success(c, view, "Task retrieved")
}

func (h *Handler) getReadyState(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	teamID := h.teamForRequest(c, m)
	util.Success(c, m.ReadyState(teamID), "Ready state retrieved")
}

// teamForRequest resolves the caller's team from its user record first, then
// falls back to the template's member lists.
func (h *Handler) teamForRequest(c *gin.Context, m run.Manager) string {
	userID := c.GetString("userID")
	if userID == "" {
		return ""
	}
	if user, err := database.GetUserByID(h.db, userID); err == nil && user.TeamID != "" {
		return user.TeamID
	}
	for _, team := range m.Template().Teams {
		for _, member := range team.Members {
			if member == userID {
				return team.ID
			}
		}
	}
	return ""
}
