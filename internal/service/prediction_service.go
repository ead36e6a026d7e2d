package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/markethours"
)

// timeframeMinutes maps the coarse timeframe labels the UI offers to
// durations.
var timeframeMinutes = map[string]int{
	"5m":  5,
	"10m": 10,
	"30m": 30,
	"1h":  60,
	"3h":  180,
}

// CreateRequest carries the creation endpoint's body.
type CreateRequest struct {
	Title            string
	Category         domain.Category
	Region           string
	Direction        domain.Direction
	MarketType       domain.MarketType
	GlobalAsset      string
	GlobalIdentifier string
	Timeframe        string
	DurationMinutes  *int
	TargetDate       *time.Time
	PredictionType   domain.PredictionType
}

// PredictionService runs the creation workflow: validate, derive duration
// and asset key, dedupe, resolve the reference price, persist. On success
// exactly one row is inserted; every failure leaves no side effects.
type PredictionService struct {
	store  domain.PredictionStore
	quotes *QuoteService
	hours  *markethours.Oracle
	logger *slog.Logger
	now    func() time.Time
}

// NewPredictionService creates a PredictionService.
func NewPredictionService(store domain.PredictionStore, quotes *QuoteService, hours *markethours.Oracle, logger *slog.Logger) *PredictionService {
	return &PredictionService{
		store:  store,
		quotes: quotes,
		hours:  hours,
		logger: logger.With(slog.String("component", "predictions")),
		now:    time.Now,
	}
}

// Create submits one prediction for the authenticated user.
func (s *PredictionService) Create(ctx context.Context, userID string, req CreateRequest) (domain.Prediction, error) {
	if userID == "" {
		return domain.Prediction{}, domain.ErrUnauthorized
	}
	if err := validateRequest(req); err != nil {
		return domain.Prediction{}, err
	}
	now := s.now()

	mode := req.PredictionType
	if mode == "" {
		mode = domain.PredictionTypeIntraday
	}

	duration, err := resolveDuration(req, mode, now)
	if err != nil {
		return domain.Prediction{}, err
	}

	// Intraday exchange-listed assets are only predictable while their home
	// market trades.
	if mode == domain.PredictionTypeIntraday &&
		(req.MarketType == domain.MarketTypeStock || req.MarketType == domain.MarketTypeIndex) {
		if st := s.hours.IsOpenAt(req.GlobalIdentifier, now); !st.IsOpen {
			return domain.Prediction{}, fmt.Errorf("%w: %s", domain.ErrMarketClosed, st.Message)
		}
	}

	assetKey := domain.AssetKey(req.MarketType, req.Category, req.Region, req.GlobalIdentifier)

	scope := domain.DuplicateScope{
		UserID:         userID,
		AssetKey:       assetKey,
		PredictionType: mode,
	}
	if mode == domain.PredictionTypeIntraday {
		scope.DurationMinutes = duration
	}
	exists, err := s.store.HasActiveDuplicate(ctx, scope)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predictions: duplicate probe: %w", err)
	}
	if exists {
		return domain.Prediction{}, domain.ErrActivePredictionExists
	}

	quote, err := s.quotes.Reference(ctx, ReferenceRequest{
		MarketType: req.MarketType,
		Category:   req.Category,
		Identifier: req.GlobalIdentifier,
		Mode:       mode,
	})
	if err != nil {
		return domain.Prediction{}, err
	}

	// An intraday prediction that cannot be priced now can never be
	// evaluated later; fail the request rather than persist a dead row.
	if mode == domain.PredictionTypeIntraday && quote.Price == nil {
		return domain.Prediction{}, fmt.Errorf("predictions: %s: %w", assetKey, domain.ErrPriceUnavailable)
	}

	p := domain.Prediction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Category:        req.Category,
		MarketType:      req.MarketType,
		AssetSymbol:     strings.TrimSpace(req.GlobalIdentifier),
		AssetKey:        assetKey,
		Direction:       req.Direction,
		Title:           composeTitle(req, duration),
		PredictionType:  mode,
		DurationMinutes: duration,
		ReferenceTime:   quote.Time,
		ReferencePrice:  quote.Price,
		DataSource:      quote.Source,
		CreatedAt:       now,
	}

	// Anchor the lock window on the reference sample, not on request
	// arrival, so fetch latency cannot skew it. Opening predictions unlock
	// at the capture instant itself.
	if mode == domain.PredictionTypeOpening {
		t := quote.Time
		p.TargetDate = &t
	} else {
		t := quote.Time.Add(time.Duration(*duration) * time.Minute)
		p.TargetDate = &t
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return domain.Prediction{}, fmt.Errorf("predictions: insert: %w", err)
	}

	s.logger.InfoContext(ctx, "prediction created",
		slog.String("id", p.ID),
		slog.String("user_id", userID),
		slog.String("asset_key", assetKey),
		slog.String("type", string(mode)),
	)
	return p, nil
}

func validateRequest(req CreateRequest) error {
	var missing []string
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if req.MarketType == "" {
		missing = append(missing, "marketType")
	}
	if strings.TrimSpace(req.GlobalIdentifier) == "" {
		missing = append(missing, "globalIdentifier")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidPrediction, strings.Join(missing, ", "))
	}
	if req.Direction != domain.DirectionUp && req.Direction != domain.DirectionDown {
		return fmt.Errorf("%w: direction must be Up or Down", domain.ErrInvalidPrediction)
	}
	if req.PredictionType != "" &&
		req.PredictionType != domain.PredictionTypeIntraday &&
		req.PredictionType != domain.PredictionTypeOpening {
		return fmt.Errorf("%w: prediction_type must be intraday or opening", domain.ErrInvalidPrediction)
	}
	if req.MarketType == domain.MarketTypeStock && strings.TrimSpace(req.Region) == "" {
		return fmt.Errorf("%w: region is required for stock predictions", domain.ErrInvalidPrediction)
	}
	return nil
}

// resolveDuration computes the lock duration in minutes. Explicit values win
// over timeframe labels, which win over a derived target date. Opening mode
// pins the duration to zero; the unlock instant is the capture instant.
func resolveDuration(req CreateRequest, mode domain.PredictionType, now time.Time) (*int, error) {
	if mode == domain.PredictionTypeOpening {
		zero := 0
		return &zero, nil
	}

	if req.DurationMinutes != nil {
		if *req.DurationMinutes < 1 {
			return nil, fmt.Errorf("%w: duration_minutes must be >= 1", domain.ErrInvalidPrediction)
		}
		d := *req.DurationMinutes
		return &d, nil
	}

	if req.Timeframe != "" {
		mins, ok := timeframeMinutes[strings.ToLower(strings.TrimSpace(req.Timeframe))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown timeframe %q", domain.ErrInvalidPrediction, req.Timeframe)
		}
		return &mins, nil
	}

	if req.TargetDate != nil {
		mins := int(req.TargetDate.Sub(now).Minutes())
		if mins < 1 {
			mins = 1
		}
		return &mins, nil
	}

	return nil, fmt.Errorf("%w: one of duration_minutes, timeframe, target_date is required", domain.ErrInvalidPrediction)
}

// composeTitle builds the human-readable statement when the caller did not
// supply one. The shape matches what downstream pages render.
func composeTitle(req CreateRequest, duration *int) string {
	if strings.TrimSpace(req.Title) != "" {
		return strings.TrimSpace(req.Title)
	}

	asset := strings.TrimSpace(req.GlobalAsset)
	if asset == "" {
		asset = strings.TrimSpace(req.GlobalIdentifier)
	}

	window := "opening"
	if req.PredictionType != domain.PredictionTypeOpening && duration != nil {
		window = fmt.Sprintf("%dm", *duration)
	}
	return fmt.Sprintf("%s: %s - %s (%s)", req.Category, asset, req.Direction, window)
}
