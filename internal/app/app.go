package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/admission"
	"github.com/chatspace/chatspace-server/internal/config"
	"github.com/chatspace/chatspace-server/internal/core"
	"github.com/chatspace/chatspace-server/internal/history"
	"github.com/chatspace/chatspace-server/internal/identity"
	"github.com/chatspace/chatspace-server/internal/linkpreview"
	"github.com/chatspace/chatspace-server/internal/store"
	"github.com/chatspace/chatspace-server/internal/store/memory"
	"github.com/chatspace/chatspace-server/internal/store/redis"
	transporthttp "github.com/chatspace/chatspace-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.Store
	if cfg.InMemoryStore {
		st = memory.New()
		logger.Warn().Msg("using in-memory store; state is lost on restart")
	} else {
		rs, err := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = rs
		logger.Info().Str("redis_addr", cfg.Redis.Addr).Msg("store initialized")
	}

	tokenCfg := &admission.TokenConfig{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
		TTL:      cfg.Session.TTL,
	}

	registry := core.NewRegistry()
	sequencer := history.NewSequencer(st, logger)
	identitySvc := identity.NewService(st, cfg.KDFIterations)
	admissionSvc := admission.NewService(st)

	var coord *core.Coordinator
	var previews core.PreviewQueue
	if cfg.PreviewWorkers > 0 {
		pool := linkpreview.New(func(room, body string) {
			coord.SystemNotice(room, body)
		}, cfg.PreviewWorkers, logger)
		previews = pool
	}

	coord = core.NewCoordinator(registry, sequencer, identitySvc, admissionSvc, st, previews, logger, core.Options{
		ServerNick:   cfg.ServerNick,
		StoreTimeout: cfg.StoreTimeout,
	})

	server := transporthttp.NewServer(coord, tokenCfg, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
