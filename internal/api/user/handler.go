package user

import (
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/auth"
	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/config"
	"github.com/openvbs/arena/internal/mediacache"
	"github.com/openvbs/arena/internal/run"
	"github.com/openvbs/arena/internal/session"
)

// Handler holds all dependencies for the participant API handlers.
type Handler struct {
	cfg         *config.Config
	db          *gorm.DB
	runtime     *run.Runtime
	sessions    *session.Registry
	templates   map[string]*competition.Template
	previews    mediacache.PreviewCache
	oidcHandler *auth.OIDCHandler
}

// NewHandler creates a new participant handler with its dependencies. The
// OIDC handler is nil when SSO is disabled.
func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	runtime *run.Runtime,
	sessions *session.Registry,
	templates map[string]*competition.Template,
	previews mediacache.PreviewCache,
	oidcHandler *auth.OIDCHandler,
) *Handler {
	return &Handler{
		cfg:         cfg,
		db:          db,
		runtime:     runtime,
		sessions:    sessions,
		templates:   templates,
		previews:    previews,
		oidcHandler: oidcHandler,
	}
}
