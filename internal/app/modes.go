package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verivolabs/verivo-engine/internal/server"
	"github.com/verivolabs/verivo-engine/internal/server/handler"
	"github.com/verivolabs/verivo-engine/internal/server/middleware"
	"github.com/verivolabs/verivo-engine/internal/server/ws"
	"github.com/verivolabs/verivo-engine/internal/validator"
)

// ServerMode runs only the HTTP + WebSocket API. Validation batches still run
// when triggered over POST /api/validate/{category}, but no interval
// scheduler is started.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ValidateMode runs only the validation scheduler: one interval loop per
// category, plus the archive loop when S3 is configured. No HTTP surface.
func (a *App) ValidateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting validate mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScheduler(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API and the validation scheduler together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScheduler(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// startScheduler registers the validation scheduler goroutine on g.
func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sched := validator.NewScheduler(deps.Engine, a.cfg.Validator.Interval.Duration, a.logger)
	if deps.Archiver != nil {
		sched = sched.WithArchive(deps.Archiver.Run, a.cfg.Validator.ArchiveInterval.Duration)
	}
	g.Go(func() error {
		return sched.Run(ctx)
	})
}

// startHTTPServer registers the API server and WebSocket hub goroutines on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	var verifier middleware.TokenVerifier
	if deps.Signer != nil {
		verifier = deps.Signer
	} else {
		a.logger.WarnContext(ctx, "auth token secret not set; API authentication disabled")
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:      handler.NewHealthHandler(a.cfg.Mode),
			Predictions: handler.NewPredictionHandler(deps.Service, deps.Store, a.logger),
			Validate:    handler.NewValidateHandler(deps.Engine, a.logger),
		},
		verifier,
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
