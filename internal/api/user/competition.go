package user

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/util"
)

type competitionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Teams     int    `json:"teams"`
	Tasks     int    `json:"tasks"`
	MediaItem int    `json:"media_items"`
}

func (h *Handler) getAllCompetitions(c *gin.Context) {
	out := make([]competitionSummary, 0, len(h.templates))
	for _, t := range h.templates {
		out = append(out, competitionSummary{
			ID:        t.ID,
			Name:      t.Name,
			Teams:     len(t.Teams),
			Tasks:     len(t.Tasks),
			MediaItem: len(t.Media),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	util.Success(c, out, "Competitions retrieved")
}

func (h *Handler) getCompetition(c *gin.Context) {
	t, ok := h.templates[c.Param("id")]
	if !ok {
		util.Error(c, http.StatusNotFound, "competition not found")
		return
	}
	util.Success(c, t, "Competition retrieved")
}
