package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openvbs/arena/internal/api/admin"
	"github.com/openvbs/arena/internal/api/user"
	"github.com/openvbs/arena/internal/auth"
	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/config"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/mediacache"
	"github.com/openvbs/arena/internal/run"
	"github.com/openvbs/arena/internal/session"
)

var Version = "dev-build"

func main() {

	fmt.Fprintf(os.Stderr, "Arena %s - Live Evaluation Competition Server\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	// runs interrupted by the previous process cannot be resumed, the live
	// latch and queue state is gone
	if err := database.ArchiveInterruptedRuns(db); err != nil {
		zap.S().Errorf("failed to archive interrupted runs: %v", err)
	}

	// competition templates
	var templateDirs []string
	for _, root := range cfg.Competition {
		dirs, err := competition.FindTemplateDirs(root)
		if err != nil {
			zap.S().Fatalf("failed to scan competition directory %s: %v", root, err)
		}
		templateDirs = append(templateDirs, dirs...)
	}
	templates, err := competition.LoadAll(templateDirs)
	if err != nil {
		zap.S().Fatalf("failed to load competition templates: %v", err)
	}
	zap.S().Infof("loaded %d competition templates", len(templates))

	// engine runtime + client transport
	sessions := session.NewRegistry()
	rt := run.NewRuntime(db, sessions, cfg.Engine)

	previews := mediacache.NewFileCache(cfg.Storage.Media, cfg.Storage.Previews)

	// SSO is optional; issuer discovery happens at startup
	var oidcHandler *auth.OIDCHandler
	if cfg.Auth.OIDC.Enabled {
		oidcHandler, err = auth.NewOIDCHandler(cfg, db)
		if err != nil {
			zap.S().Fatalf("failed to initialize OIDC: %v", err)
		}
	}

	// API routers
	userEngine := user.NewRouter(user.NewHandler(cfg, db, rt, sessions, templates, previews, oidcHandler))
	adminEngine := admin.NewRouter(admin.NewHandler(cfg, db, rt, templates))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	userSrv := &http.Server{Addr: cfg.Listen, Handler: userEngine}
	g.Go(func() error {
		zap.S().Infof("starting participant server at %s", cfg.Listen)
		if err := userSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var adminSrv *http.Server
	if cfg.Admin.Enabled {
		adminSrv = &http.Server{Addr: cfg.Admin.Listen, Handler: adminEngine}
		g.Go(func() error {
			zap.S().Infof("starting admin server at %s", cfg.Admin.Listen)
			if err := adminSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		zap.S().Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := userSrv.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnf("participant server shutdown: %v", err)
		}
		if adminSrv != nil {
			if err := adminSrv.Shutdown(shutdownCtx); err != nil {
				zap.S().Warnf("admin server shutdown: %v", err)
			}
		}

		// stop every tick loop after the handlers stopped feeding them
		rt.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.S().Fatalf("server error: %v", err)
	}
}
