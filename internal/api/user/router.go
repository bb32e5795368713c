package user

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openvbs/arena/internal/api"
)

// NewRouter creates and configures the participant Gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(zap.L(), true))

	r.Use(api.CORSMiddleware(h.cfg.CORS))

	v1 := r.Group("/api/v1")
	{
		// Auth
		authGroup := v1.Group("/auth")
		{
			authGroup.GET("/status", h.getAuthStatus)
			if h.oidcHandler != nil {
				oidcGroup := authGroup.Group("/oidc")
				oidcGroup.GET("/login", h.oidcHandler.Login)
				oidcGroup.GET("/callback", h.oidcHandler.Callback)
			}
			if h.cfg.Auth.Local.Enabled {
				localGroup := authGroup.Group("/local")
				localGroup.POST("/login", h.localLogin)
			}
		}

		// Websocket with token query authorization
		v1.GET("/ws/runs/:id", h.handleRunWs)

		// Publicly accessible info
		v1.GET("/competitions", h.getAllCompetitions)
		v1.GET("/competitions/:id", h.getCompetition)
		v1.GET("/runs", h.getAllRuns)
		v1.GET("/runs/:id", h.getRun)
		v1.GET("/runs/:id/scoreboards", h.getScoreboards)
		v1.GET("/runs/:id/scoreboards/:board/series", h.getScoreSeries)

		// Authenticated routes
		authed := v1.Group("/")
		authed.Use(api.AuthMiddleware(h.cfg.Auth.JWT.Secret))
		{
			authed.GET("/user/profile", h.getProfile)

			authed.GET("/runs/:id/task", h.getCurrentTask)
			authed.GET("/runs/:id/task/hint", h.getTaskHint)
			authed.GET("/runs/:id/ready", h.getReadyState)
			authed.POST("/runs/:id/submit", h.postSubmission)
		}
	}

	return r
}
