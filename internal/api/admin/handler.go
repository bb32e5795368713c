package admin

import (
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/config"
	"github.com/openvbs/arena/internal/run"
)

// Handler holds all dependencies for the admin API handlers.
type Handler struct {
	cfg       *config.Config
	db        *gorm.DB
	runtime   *run.Runtime
	templates map[string]*competition.Template
}

func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	runtime *run.Runtime,
	templates map[string]*competition.Template,
) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		runtime:   runtime,
		templates: templates,
	}
}
