package domain

import (
	"context"
	"time"
)

// DuplicateScope narrows the unresolved-duplicate probe that guards creation.
// Intraday predictions only collide within the same duration; opening
// predictions collide with any unresolved opening prediction on the asset.
type DuplicateScope struct {
	UserID          string
	AssetKey        string
	PredictionType  PredictionType
	DurationMinutes *int // consulted for intraday scope only
}

// PredictionStore is the persistence contract for predictions. All
// cross-invocation coordination between the creation workflow and the
// validator workers happens through these rows.
type PredictionStore interface {
	Insert(ctx context.Context, p Prediction) error
	GetByID(ctx context.Context, id string) (Prediction, error)

	// HasActiveDuplicate reports whether an unresolved prediction already
	// exists in the given scope.
	HasActiveDuplicate(ctx context.Context, scope DuplicateScope) (bool, error)

	// ListPending returns up to limit unresolved predictions for a category,
	// oldest first.
	ListPending(ctx context.Context, category Category, limit int) ([]Prediction, error)

	// SetReferencePrice backfills a deferred opening reference. The update is
	// conditional on the stored reference still being null.
	SetReferencePrice(ctx context.Context, id string, price float64, source string) error

	// ClaimOutcome atomically records the terminal outcome. The update only
	// matches while outcome is still null; a zero-row match returns
	// ErrAlreadyEvaluated so overlapping runs cannot double-resolve.
	ClaimOutcome(ctx context.Context, id string, outcome Outcome, finalPrice *float64, evaluatedAt time.Time) error

	// ListEvaluatedBefore and DeleteEvaluatedBefore support cold-storage
	// archival of long-resolved predictions.
	ListEvaluatedBefore(ctx context.Context, before time.Time) ([]Prediction, error)
	DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// QuoteCache is a short-TTL cache in front of the external price sources so
// a batch of same-asset rows costs one upstream call.
type QuoteCache interface {
	SetQuote(ctx context.Context, key string, price float64, ts time.Time) error
	// GetQuote returns ErrNotFound on a miss or an expired entry.
	GetQuote(ctx context.Context, key string) (float64, time.Time, error)
}

// EventBus publishes evaluation events to interested consumers (WebSocket
// hub, notifiers) and lets them subscribe by channel.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
