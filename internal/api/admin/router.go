package admin

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openvbs/arena/internal/api"
	"github.com/openvbs/arena/internal/database/models"
)

// NewRouter creates and configures the admin Gin engine. Everything behind
// it requires a token; run control requires the admin role, the judgement
// queue admits judges too.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(zap.L(), true))

	r.Use(api.CORSMiddleware(h.cfg.CORS))

	v1 := r.Group("/api/v1")
	v1.Use(api.AuthMiddleware(h.cfg.Auth.JWT.Secret))
	{
		// Run Management
		runs := v1.Group("/runs", api.RequireRole(models.RoleAdmin))
		{
			runs.GET("", h.getAllRuns)
			runs.POST("", h.createRun)
			runs.GET("/:id", h.getRun)
			runs.POST("/:id/start", h.startRun)
			runs.POST("/:id/terminate", h.terminateRun)
			runs.POST("/:id/tasks/goto", h.goToTask)
			runs.POST("/:id/tasks/next", h.nextTask)
			runs.POST("/:id/tasks/previous", h.previousTask)
			runs.POST("/:id/tasks/start", h.startTask)
			runs.POST("/:id/tasks/abort", h.abortTask)
			runs.GET("/:id/audit", h.getAuditLog)
		}

		// Judgement Queue
		judge := v1.Group("/runs/:id/judgements", api.RequireRole(models.RoleJudge))
		{
			judge.GET("/next", h.nextJudgement)
			judge.GET("/pending", h.pendingJudgements)
			judge.POST("/:answerSetID/verdict", h.postVerdict)
		}

		// User Management
		users := v1.Group("/users", api.RequireRole(models.RoleAdmin))
		{
			users.GET("", h.getAllUsers)
			users.POST("", h.createUser)
			users.GET("/:id", h.getUser)
			users.PATCH("/:id", h.updateUser)
			users.DELETE("/:id", h.deleteUser)
			users.POST("/:id/reset-password", h.resetUserPassword)
		}
	}

	return r
}
