package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/markethours"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
)

type memStore struct {
	rows      []domain.Prediction
	duplicate bool
	dupScope  domain.DuplicateScope
}

func (m *memStore) Insert(ctx context.Context, p domain.Prediction) error {
	m.rows = append(m.rows, p)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	for _, p := range m.rows {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Prediction{}, domain.ErrNotFound
}

func (m *memStore) HasActiveDuplicate(ctx context.Context, scope domain.DuplicateScope) (bool, error) {
	m.dupScope = scope
	return m.duplicate, nil
}

func (m *memStore) ListPending(ctx context.Context, category domain.Category, limit int) ([]domain.Prediction, error) {
	return nil, nil
}

func (m *memStore) SetReferencePrice(ctx context.Context, id string, price float64, source string) error {
	return nil
}

func (m *memStore) ClaimOutcome(ctx context.Context, id string, outcome domain.Outcome, finalPrice *float64, evaluatedAt time.Time) error {
	return nil
}

func (m *memStore) ListEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error) {
	return nil, nil
}

func (m *memStore) DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubSpot struct {
	price float64
	err   error
	pairs []string
}

func (s *stubSpot) Spot(ctx context.Context, pair string) (float64, error) {
	s.pairs = append(s.pairs, pair)
	return s.price, s.err
}

type stubFX struct {
	rate float64
	err  error
}

func (s *stubFX) RateToUSD(ctx context.Context, base string) (float64, error) {
	return s.rate, s.err
}

type stubCharts struct {
	quote yahoo.Quote
	err   error
}

func (s *stubCharts) Chart(ctx context.Context, symbol string) (yahoo.Quote, error) {
	return s.quote, s.err
}

var quietLogger = slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Monday 2026-03-02 15:00 UTC: US market open (10:00 New York), London open.
var tradingNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memStore
	spot   *stubSpot
	fx     *stubFX
	charts *stubCharts
	svc    *PredictionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  &memStore{},
		spot:   &stubSpot{price: 42000},
		fx:     &stubFX{rate: 1.08},
		charts: &stubCharts{},
	}
	hours := markethours.New()
	quotes := NewQuoteService(f.spot, f.fx, f.charts, hours, nil, quietLogger)
	quotes.now = func() time.Time { return tradingNow }
	f.svc = NewPredictionService(f.store, quotes, hours, quietLogger)
	f.svc.now = func() time.Time { return tradingNow }
	return f
}

func cryptoRequest() CreateRequest {
	return CreateRequest{
		Category:         domain.CategoryCrypto,
		MarketType:       domain.MarketTypeGlobal,
		GlobalAsset:      "Bitcoin",
		GlobalIdentifier: "BTC",
		Direction:        domain.DirectionUp,
		Timeframe:        "5m",
	}
}

func TestCreateIntradayCrypto(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(context.Background(), "user-1", cryptoRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.ID == "" {
		t.Error("ID not assigned")
	}
	if p.AssetKey != "crypto:btc" {
		t.Errorf("asset key = %q, want crypto:btc", p.AssetKey)
	}
	if p.ReferencePrice == nil || *p.ReferencePrice != 42000 {
		t.Fatalf("reference price = %v, want 42000", p.ReferencePrice)
	}
	if p.DurationMinutes == nil || *p.DurationMinutes != 5 {
		t.Fatalf("duration = %v, want 5", p.DurationMinutes)
	}
	if !p.ReferenceTime.Equal(tradingNow) {
		t.Errorf("reference time = %v, want %v", p.ReferenceTime, tradingNow)
	}
	// Lock window anchored on the reference sample, not request arrival.
	wantTarget := tradingNow.Add(5 * time.Minute)
	if p.TargetDate == nil || !p.TargetDate.Equal(wantTarget) {
		t.Errorf("target date = %v, want %v", p.TargetDate, wantTarget)
	}
	if p.Title != "Crypto: Bitcoin - Up (5m)" {
		t.Errorf("title = %q", p.Title)
	}
	if len(f.store.rows) != 1 {
		t.Fatalf("inserted rows = %d, want 1", len(f.store.rows))
	}
	if got := f.spot.pairs; len(got) != 1 || got[0] != "BTC-USD" {
		t.Errorf("spot pairs fetched = %v, want [BTC-USD]", got)
	}
}

func TestCreateRejectsDuplicateWithoutInsert(t *testing.T) {
	f := newFixture(t)
	f.store.duplicate = true

	_, err := f.svc.Create(context.Background(), "user-1", cryptoRequest())
	if !errors.Is(err, domain.ErrActivePredictionExists) {
		t.Fatalf("err = %v, want ErrActivePredictionExists", err)
	}
	if len(f.store.rows) != 0 {
		t.Errorf("inserted rows = %d, want 0", len(f.store.rows))
	}
	if len(f.spot.pairs) != 0 {
		t.Errorf("price fetched before dedupe verdict: %v", f.spot.pairs)
	}
	if f.store.dupScope.DurationMinutes == nil || *f.store.dupScope.DurationMinutes != 5 {
		t.Errorf("intraday dedupe scope missing duration: %+v", f.store.dupScope)
	}
}

func TestCreateIntradayFailsHardWhenUnpriceable(t *testing.T) {
	f := newFixture(t)
	f.spot.err = errors.New("coinbase 503")

	_, err := f.svc.Create(context.Background(), "user-1", cryptoRequest())
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
	if len(f.store.rows) != 0 {
		t.Errorf("inserted rows = %d, want 0", len(f.store.rows))
	}
}

func TestCreateOpeningForexDefersReference(t *testing.T) {
	f := newFixture(t)
	// Sunday evening UTC: next London open is Monday 2026-03-02 08:00.
	submitted := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return submitted }
	f.svc.quotes.now = func() time.Time { return submitted }

	p, err := f.svc.Create(context.Background(), "user-1", CreateRequest{
		Category:         domain.CategoryForex,
		MarketType:       domain.MarketTypeGlobal,
		GlobalIdentifier: "EUR",
		Direction:        domain.DirectionDown,
		PredictionType:   domain.PredictionTypeOpening,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.ReferencePrice != nil {
		t.Errorf("reference price = %v, want nil (deferred)", *p.ReferencePrice)
	}
	london, _ := time.LoadLocation("Europe/London")
	wantOpen := time.Date(2026, 3, 2, 8, 0, 0, 0, london)
	if !p.ReferenceTime.Equal(wantOpen) {
		t.Errorf("reference time = %v, want %v", p.ReferenceTime, wantOpen)
	}
	if p.DurationMinutes == nil || *p.DurationMinutes != 0 {
		t.Errorf("duration = %v, want 0 for opening mode", p.DurationMinutes)
	}
	if p.TargetDate == nil || !p.TargetDate.Equal(wantOpen) {
		t.Errorf("target date = %v, want the capture instant", p.TargetDate)
	}
}

func TestCreateOpeningForexAfterCutoff(t *testing.T) {
	f := newFixture(t)
	london, _ := time.LoadLocation("Europe/London")
	// Five minutes past the London open on a trading day.
	late := time.Date(2026, 3, 2, 8, 5, 0, 0, london)
	f.svc.now = func() time.Time { return late }
	f.svc.quotes.now = func() time.Time { return late }

	_, err := f.svc.Create(context.Background(), "user-1", CreateRequest{
		Category:         domain.CategoryForex,
		MarketType:       domain.MarketTypeGlobal,
		GlobalIdentifier: "GBP",
		Direction:        domain.DirectionUp,
		PredictionType:   domain.PredictionTypeOpening,
	})
	if !errors.Is(err, domain.ErrCutoffPassed) {
		t.Fatalf("err = %v, want ErrCutoffPassed", err)
	}
	if len(f.store.rows) != 0 {
		t.Errorf("inserted rows = %d, want 0", len(f.store.rows))
	}
}

func TestCreateIntradayIndexOutsideSessionIsRejected(t *testing.T) {
	f := newFixture(t)
	// 03:00 New York, hours before the bell.
	f.svc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }

	_, err := f.svc.Create(context.Background(), "user-1", CreateRequest{
		Category:         domain.CategoryIndices,
		MarketType:       domain.MarketTypeIndex,
		GlobalIdentifier: "^GSPC",
		Direction:        domain.DirectionUp,
		Timeframe:        "1h",
	})
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("err = %v, want ErrMarketClosed", err)
	}
	if len(f.store.rows) != 0 {
		t.Errorf("inserted rows = %d, want 0", len(f.store.rows))
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		userID  string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{
			name:    "missing user",
			userID:  "",
			mutate:  func(r *CreateRequest) {},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "missing identifier",
			userID:  "u",
			mutate:  func(r *CreateRequest) { r.GlobalIdentifier = " " },
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:    "bad direction",
			userID:  "u",
			mutate:  func(r *CreateRequest) { r.Direction = "Sideways" },
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:    "bad prediction type",
			userID:  "u",
			mutate:  func(r *CreateRequest) { r.PredictionType = "weekly" },
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:   "stock without region",
			userID: "u",
			mutate: func(r *CreateRequest) {
				r.Category = domain.CategoryStocks
				r.MarketType = domain.MarketTypeStock
				r.GlobalIdentifier = "AAPL"
				r.Region = ""
			},
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:    "unknown timeframe",
			userID:  "u",
			mutate:  func(r *CreateRequest) { r.Timeframe = "2w" },
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:   "zero explicit duration",
			userID: "u",
			mutate: func(r *CreateRequest) {
				r.Timeframe = ""
				zero := 0
				r.DurationMinutes = &zero
			},
			wantErr: domain.ErrInvalidPrediction,
		},
		{
			name:   "no lock window at all",
			userID: "u",
			mutate: func(r *CreateRequest) {
				r.Timeframe = ""
				r.DurationMinutes = nil
				r.TargetDate = nil
			},
			wantErr: domain.ErrInvalidPrediction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := cryptoRequest()
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), tt.userID, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(f.store.rows) != 0 {
		t.Errorf("inserted rows = %d, want 0", len(f.store.rows))
	}
}

func TestCreatePastTargetDateClampsToOneMinute(t *testing.T) {
	f := newFixture(t)
	past := tradingNow.Add(-time.Hour)
	req := cryptoRequest()
	req.Timeframe = ""
	req.TargetDate = &past

	p, err := f.svc.Create(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.DurationMinutes == nil || *p.DurationMinutes != 1 {
		t.Errorf("duration = %v, want clamp to 1", p.DurationMinutes)
	}
}
