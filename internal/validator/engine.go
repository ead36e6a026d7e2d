package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/notify"
)

// defaultBatchSize bounds how many pending rows one run processes.
const defaultBatchSize = 50

// eventChannel is the pub/sub channel evaluation events are published on.
const eventChannel = "predictions"

// RowResult summarizes what one run did with one pending row.
type RowResult struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Outcome *domain.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Row statuses reported in run summaries.
const (
	StatusLocked            = "locked"
	StatusAwaitingReference = "awaiting_reference"
	StatusBackfilled        = "reference_backfilled"
	StatusEvaluated         = "evaluated"
	StatusDataUnavailable   = "data_unavailable"
	StatusRetryLater        = "retry_later"
	StatusAlreadyEvaluated  = "already_evaluated"
	StatusError             = "error"
)

// Summary is the result of one batch run for one category.
type Summary struct {
	Category  domain.Category `json:"category"`
	Processed int             `json:"processed"`
	Evaluated int             `json:"evaluated"`
	Details   []RowResult     `json:"details"`
}

// Engine executes the two-phase validation algorithm over pending
// predictions. It is stateless between runs; "at most once" evaluation rests
// on the store's conditional outcome claim, so overlapping runs are safe.
type Engine struct {
	store      domain.PredictionStore
	evaluators map[domain.Category]Evaluator
	bus        domain.EventBus  // optional
	notifier   *notify.Notifier // optional
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an Engine. bus and notifier may be nil; batchSize <= 0
// uses the default.
func NewEngine(store domain.PredictionStore, bus domain.EventBus, notifier *notify.Notifier, batchSize int, logger *slog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{
		store:      store,
		evaluators: make(map[domain.Category]Evaluator),
		bus:        bus,
		notifier:   notifier,
		batchSize:  batchSize,
		logger:     logger.With(slog.String("component", "validator")),
		now:        time.Now,
	}
}

// Register adds an evaluator for its category, replacing any previous one.
func (e *Engine) Register(ev Evaluator) {
	e.evaluators[ev.Category()] = ev
}

// Categories returns the categories with a registered evaluator.
func (e *Engine) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(e.evaluators))
	for _, c := range domain.Categories {
		if _, ok := e.evaluators[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RunCategory executes one batch for one category. Per-row failures are
// contained: a row that cannot be processed is reported in the summary and
// never aborts the rest of the batch.
func (e *Engine) RunCategory(ctx context.Context, category domain.Category) (Summary, error) {
	ev, ok := e.evaluators[category]
	if !ok {
		return Summary{}, fmt.Errorf("validator: %w: %q", domain.ErrUnknownCategory, category)
	}

	pending, err := e.store.ListPending(ctx, category, e.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("validator: list pending %s: %w", category, err)
	}

	summary := Summary{Category: category, Processed: len(pending)}
	for _, p := range pending {
		res := e.processRow(ctx, ev, p)
		if res.Status == StatusEvaluated || res.Status == StatusDataUnavailable {
			summary.Evaluated++
		}
		summary.Details = append(summary.Details, res)
	}

	if summary.Evaluated > 0 {
		e.logger.InfoContext(ctx, "validation run finished",
			slog.String("category", string(category)),
			slog.Int("processed", summary.Processed),
			slog.Int("evaluated", summary.Evaluated),
		)
	}
	return summary, nil
}

// processRow runs both phases for a single prediction.
func (e *Engine) processRow(ctx context.Context, ev Evaluator, p domain.Prediction) (res RowResult) {
	res = RowResult{ID: p.ID}
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "row processing panicked",
				slog.String("id", p.ID),
				slog.Any("panic", r),
			)
			res.Status = StatusError
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	now := e.now()

	// Phase A: backfill a deferred opening reference. The capture only
	// becomes the genuine opening price once the session has begun, so rows
	// before their reference instant wait.
	if p.ReferencePrice == nil {
		if now.Before(p.ReferenceTime) {
			res.Status = StatusAwaitingReference
			return res
		}

		price, source, err := ev.FetchPrice(ctx, p)
		if err != nil {
			e.logger.WarnContext(ctx, "reference backfill failed",
				slog.String("id", p.ID),
				slog.String("error", err.Error()),
			)
			res.Status = StatusRetryLater
			res.Error = err.Error()
			return res
		}

		if err := e.store.SetReferencePrice(ctx, p.ID, price, source); err != nil {
			if !errors.Is(err, domain.ErrAlreadyEvaluated) {
				res.Status = StatusError
				res.Error = err.Error()
				return res
			}
			// Another run captured it first; theirs stands.
		} else {
			p.ReferencePrice = &price
			p.DataSource = source
			res.Status = StatusBackfilled
		}
		// Fall through: the same run may already be able to evaluate.
	}

	// Phase B: outcome evaluation.
	unlock, ok := p.UnlockTime()
	if !ok {
		res.Status = StatusError
		res.Error = "no unlock time derivable"
		return res
	}
	if now.Before(unlock) {
		if res.Status == "" {
			res.Status = StatusLocked
		}
		return res
	}
	if p.ReferencePrice == nil {
		res.Status = StatusRetryLater
		res.Error = "reference price still missing"
		return res
	}

	final, _, err := ev.FetchPrice(ctx, p)
	if err != nil {
		if stale := ev.StaleAfter(); stale > 0 && now.Sub(unlock) > stale {
			return e.claim(ctx, p, domain.OutcomeDataUnavailable, nil, now)
		}
		e.logger.WarnContext(ctx, "final price fetch failed",
			slog.String("id", p.ID),
			slog.String("category", string(p.Category)),
			slog.String("error", err.Error()),
		)
		res.Status = StatusRetryLater
		res.Error = err.Error()
		return res
	}

	outcome := domain.ResolveDirection(p.Direction, *p.ReferencePrice, final)
	return e.claim(ctx, p, outcome, &final, now)
}

// claim persists the terminal outcome through the store's conditional
// update and publishes the evaluation event when the claim wins.
func (e *Engine) claim(ctx context.Context, p domain.Prediction, outcome domain.Outcome, final *float64, now time.Time) RowResult {
	res := RowResult{ID: p.ID}

	if err := e.store.ClaimOutcome(ctx, p.ID, outcome, final, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyEvaluated) {
			res.Status = StatusAlreadyEvaluated
			return res
		}
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	res.Outcome = &outcome
	if outcome == domain.OutcomeDataUnavailable {
		res.Status = StatusDataUnavailable
	} else {
		res.Status = StatusEvaluated
	}

	e.publish(ctx, p, outcome, final, now)
	return res
}

// publish fans the evaluation out to the event bus and the notifier, best
// effort on both.
func (e *Engine) publish(ctx context.Context, p domain.Prediction, outcome domain.Outcome, final *float64, now time.Time) {
	event := domain.EvaluationEvent{
		PredictionID:   p.ID,
		UserID:         p.UserID,
		Category:       p.Category,
		AssetKey:       p.AssetKey,
		Direction:      p.Direction,
		Outcome:        outcome,
		ReferencePrice: p.ReferencePrice,
		FinalPrice:     final,
		EvaluationTime: now,
	}

	if e.bus != nil {
		if data, err := json.Marshal(event); err == nil {
			if err := e.bus.Publish(ctx, eventChannel, data); err != nil {
				e.logger.WarnContext(ctx, "event publish failed",
					slog.String("id", p.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if e.notifier != nil {
		eventType := "prediction_evaluated"
		if outcome == domain.OutcomeDataUnavailable {
			eventType = "data_unavailable"
		}
		title := fmt.Sprintf("Prediction %s", outcome)
		msg := fmt.Sprintf("%s %s (%s)", p.AssetKey, p.Direction, p.Title)
		if err := e.notifier.Notify(ctx, eventType, title, msg); err != nil {
			e.logger.WarnContext(ctx, "notification failed",
				slog.String("id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
