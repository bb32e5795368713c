package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openvbs/arena/internal/run"
)

type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

func Success(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Data:    data,
		Message: message,
	})
}

func Error(c *gin.Context, code int, err interface{}) {
	msg := ""
	switch e := err.(type) {
	case string:
		msg = e
	case error:
		msg = e.Error()
	default:
		msg = "Internal Server Error"
	}

	zap.S().Errorf("API Error: %s", msg)

	c.JSON(code, Response{
		Code:    -1,
		Data:    nil,
		Message: msg,
	})
}

// EngineError maps engine failures onto HTTP codes: illegal state transitions
// and filter rejections are client errors, unknown entities are 404, the rest
// is 500.
func EngineError(c *gin.Context, err error) {
	switch {
	case run.IsStateConflict(err):
		Error(c, http.StatusConflict, err)
	case run.IsRejected(err):
		Error(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, run.ErrUnknownRun),
		errors.Is(err, run.ErrUnknownTeam),
		errors.Is(err, run.ErrUnknownJudgement),
		errors.Is(err, run.ErrTaskOutOfRange):
		Error(c, http.StatusNotFound, err)
	case errors.Is(err, run.ErrNotRegistered):
		Error(c, http.StatusForbidden, err)
	default:
		Error(c, http.StatusInternalServerError, err)
	}
}
