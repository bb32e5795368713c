package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/mediacache"
	"github.com/openvbs/arena/internal/util"
)

// getTaskHint materializes the current task's hint. Text hints return
// immediately; media hints await the preview cache and serve the resulting
// file.
func (h *Handler) getTaskHint(c *gin.Context) {
	m, ok := h.runtime.Get(c.Param("id"))
	if !ok {
		util.Error(c, http.StatusNotFound, "run not found")
		return
	}
	view := m.CurrentTask(h.teamForRequest(c, m))
	if view == nil {
		util.Error(c, http.StatusNotFound, "no current task")
		return
	}

	hint := view.Hint
	if hint.Item == "" {
		util.Success(c, gin.H{"text": hint.Text}, "Hint retrieved")
		return
	}

	item, ok := m.Template().MediaItemByName(hint.Item)
	if !ok {
		util.Error(c, http.StatusInternalServerError, "hint references unknown media item")
		return
	}

	var resultCh <-chan mediacache.Result
	if hint.StartMS != nil && hint.EndMS != nil {
		resultCh = h.previews.AsyncPreviewVideo(*item, *hint.StartMS, *hint.EndMS)
	} else {
		var at int64
		if hint.StartMS != nil {
			at = *hint.StartMS
		}
		resultCh = h.previews.AsyncPreviewImage(*item, at)
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			util.Error(c, http.StatusInternalServerError, res.Err)
			return
		}
		c.File(res.Path)
	case <-c.Request.Context().Done():
	}
}
