package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// ArchiveFunc exports and prunes long-evaluated predictions. The scheduler
// runs it on its own daily tick when configured.
type ArchiveFunc func(ctx context.Context) error

// Scheduler runs one independent interval loop per registered category, plus
// an optional archival loop. Each loop is single-threaded; a slow external
// fetch delays only its own category.
type Scheduler struct {
	engine          *Engine
	interval        time.Duration
	archive         ArchiveFunc
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewScheduler creates a Scheduler driving the given engine.
func NewScheduler(engine *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// WithArchive attaches an archival loop running every interval (defaults to
// 24h when zero).
func (s *Scheduler) WithArchive(fn ArchiveFunc, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.archive = fn
	s.archiveInterval = interval
	return s
}

// Run blocks until the context is cancelled. Category loops run under an
// errgroup; a loop only returns an error when its category is unregistered,
// so in practice cancellation is the one way out.
func (s *Scheduler) Run(ctx context.Context) error {
	categories := s.engine.Categories()
	s.logger.Info("validation scheduler starting",
		slog.Int("categories", len(categories)),
		slog.Duration("interval", s.interval),
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, category := range categories {
		g.Go(func() error {
			err := s.runCategoryLoop(ctx, category)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("scheduler: %s loop: %w", category, err)
		})
	}

	if s.archive != nil {
		g.Go(func() error {
			s.runArchiveLoop(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("validation scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("validation scheduler stopped")
	return nil
}

// runCategoryLoop executes one batch immediately, then on every tick. Batch
// errors are logged and the loop keeps going; rows left pending are picked
// up next run.
func (s *Scheduler) runCategoryLoop(ctx context.Context, category domain.Category) error {
	s.runOnce(ctx, category)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, category)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, category domain.Category) {
	if _, err := s.engine.RunCategory(ctx, category); err != nil {
		s.logger.ErrorContext(ctx, "validation run failed",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) runArchiveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.archive(ctx); err != nil {
				s.logger.ErrorContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
