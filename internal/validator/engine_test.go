package validator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]*domain.Prediction
	order   []string
	inserts int
}

func newFakeStore(rows ...domain.Prediction) *fakeStore {
	s := &fakeStore{rows: make(map[string]*domain.Prediction)}
	for i := range rows {
		r := rows[i]
		s.rows[r.ID] = &r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakeStore) Insert(ctx context.Context, p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	s.rows[p.ID] = &p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *fakeStore) HasActiveDuplicate(ctx context.Context, scope domain.DuplicateScope) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.Outcome != nil || p.UserID != scope.UserID || p.AssetKey != scope.AssetKey || p.PredictionType != scope.PredictionType {
			continue
		}
		if scope.PredictionType == domain.PredictionTypeIntraday {
			if p.DurationMinutes == nil || scope.DurationMinutes == nil || *p.DurationMinutes != *scope.DurationMinutes {
				continue
			}
		}
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) ListPending(ctx context.Context, category domain.Category, limit int) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Prediction
	for _, id := range s.order {
		p := s.rows[id]
		if p.Category == category && p.Outcome == nil {
			out = append(out, *p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SetReferencePrice(ctx context.Context, id string, price float64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ReferencePrice != nil || p.Outcome != nil {
		return domain.ErrAlreadyEvaluated
	}
	p.ReferencePrice = &price
	p.DataSource = source
	return nil
}

func (s *fakeStore) ClaimOutcome(ctx context.Context, id string, outcome domain.Outcome, finalPrice *float64, evaluatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Outcome != nil {
		return domain.ErrAlreadyEvaluated
	}
	p.Outcome = &outcome
	p.FinalPrice = finalPrice
	p.EvaluationTime = &evaluatedAt
	return nil
}

func (s *fakeStore) ListEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Prediction
	for _, id := range s.order {
		p := s.rows[id]
		if p.Outcome != nil && p.EvaluationTime != nil && p.EvaluationTime.Before(before) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.rows {
		if p.Outcome != nil && p.EvaluationTime != nil && p.EvaluationTime.Before(before) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeEvaluator struct {
	category   domain.Category
	price      float64
	err        error
	stale      time.Duration
	panicOnID  string
	fetchCalls int
}

func (f *fakeEvaluator) Category() domain.Category { return f.category }

func (f *fakeEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	f.fetchCalls++
	if p.ID == f.panicOnID {
		panic("price source exploded")
	}
	if f.err != nil {
		return 0, "", f.err
	}
	return f.price, "fake-source", nil
}

func (f *fakeEvaluator) StaleAfter() time.Duration { return f.stale }

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// pendingIntraday builds an unresolved 5-minute row whose reference was
// captured minutesAgo, so it unlocked minutesAgo-5 minutes before fixedNow.
func pendingIntraday(id string, direction domain.Direction, ref float64, minutesAgo int) domain.Prediction {
	dur := 5
	return domain.Prediction{
		ID:              id,
		UserID:          "u1",
		Category:        domain.CategoryCrypto,
		MarketType:      domain.MarketTypeGlobal,
		AssetSymbol:     "BTC",
		AssetKey:        "crypto:btc",
		Direction:       direction,
		Title:           "Crypto: BTC - " + string(direction) + " (5m)",
		PredictionType:  domain.PredictionTypeIntraday,
		DurationMinutes: &dur,
		ReferenceTime:   fixedNow().Add(-time.Duration(minutesAgo) * time.Minute),
		ReferencePrice:  &ref,
		DataSource:      "fake-source",
		CreatedAt:       fixedNow().Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func newTestEngine(store domain.PredictionStore, ev Evaluator) *Engine {
	e := NewEngine(store, nil, nil, 0, testLogger)
	e.now = fixedNow
	e.Register(ev)
	return e
}

func TestRunCategoryEvaluatesUnlockedRows(t *testing.T) {
	store := newFakeStore(
		pendingIntraday("p-up-wins", domain.DirectionUp, 100, 10),
		pendingIntraday("p-down-loses", domain.DirectionDown, 100, 10),
	)
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 105}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if sum.Processed != 2 || sum.Evaluated != 2 {
		t.Fatalf("summary = %d processed / %d evaluated, want 2/2", sum.Processed, sum.Evaluated)
	}

	up, _ := store.GetByID(context.Background(), "p-up-wins")
	if up.Outcome == nil || *up.Outcome != domain.OutcomeCorrect {
		t.Errorf("up prediction outcome = %v, want Correct", up.Outcome)
	}
	if up.FinalPrice == nil || *up.FinalPrice != 105 {
		t.Errorf("up prediction final price = %v, want 105", up.FinalPrice)
	}
	down, _ := store.GetByID(context.Background(), "p-down-loses")
	if down.Outcome == nil || *down.Outcome != domain.OutcomeIncorrect {
		t.Errorf("down prediction outcome = %v, want Incorrect", down.Outcome)
	}
}

func TestExactTieIsIncorrectForBothDirections(t *testing.T) {
	store := newFakeStore(
		pendingIntraday("tie-up", domain.DirectionUp, 250, 5),
		pendingIntraday("tie-down", domain.DirectionDown, 250, 5),
	)
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 250}

	if _, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto); err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	for _, id := range []string{"tie-up", "tie-down"} {
		p, _ := store.GetByID(context.Background(), id)
		if p.Outcome == nil || *p.Outcome != domain.OutcomeIncorrect {
			t.Errorf("%s outcome = %v, want Incorrect", id, p.Outcome)
		}
	}
}

func TestLockedRowIsLeftAlone(t *testing.T) {
	p := pendingIntraday("still-locked", domain.DirectionUp, 100, 10)
	*p.DurationMinutes = 30 // unlocks 20 minutes from fixedNow
	store := newFakeStore(p)
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 105}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if sum.Evaluated != 0 {
		t.Fatalf("evaluated = %d, want 0", sum.Evaluated)
	}
	if got := sum.Details[0].Status; got != StatusLocked {
		t.Errorf("status = %q, want %q", got, StatusLocked)
	}
	if ev.fetchCalls != 0 {
		t.Errorf("fetch calls = %d, want 0 for a locked row", ev.fetchCalls)
	}
}

func TestOpeningReferenceBackfillThenEvaluateSameRun(t *testing.T) {
	// Reference instant and unlock have both passed, reference price missing:
	// one run must backfill phase A and resolve phase B.
	target := fixedNow().Add(-time.Minute)
	store := newFakeStore(domain.Prediction{
		ID:             "opening-row",
		UserID:         "u1",
		Category:       domain.CategoryCrypto,
		MarketType:     domain.MarketTypeGlobal,
		AssetSymbol:    "ETH",
		AssetKey:       "crypto:eth",
		Direction:      domain.DirectionUp,
		PredictionType: domain.PredictionTypeOpening,
		TargetDate:     &target,
		ReferenceTime:  target,
		CreatedAt:      fixedNow().Add(-time.Hour),
	})
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 3000}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if sum.Evaluated != 1 {
		t.Fatalf("evaluated = %d, want 1", sum.Evaluated)
	}

	p, _ := store.GetByID(context.Background(), "opening-row")
	if p.ReferencePrice == nil || *p.ReferencePrice != 3000 {
		t.Fatalf("reference price = %v, want 3000", p.ReferencePrice)
	}
	// Same price both phases: Up at equal prices loses.
	if p.Outcome == nil || *p.Outcome != domain.OutcomeIncorrect {
		t.Errorf("outcome = %v, want Incorrect", p.Outcome)
	}
}

func TestReferenceNotYetDueIsAwaiting(t *testing.T) {
	future := fixedNow().Add(30 * time.Minute)
	store := newFakeStore(domain.Prediction{
		ID:             "not-yet-open",
		Category:       domain.CategoryCrypto,
		PredictionType: domain.PredictionTypeOpening,
		Direction:      domain.DirectionUp,
		TargetDate:     &future,
		ReferenceTime:  future,
	})
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 1}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if got := sum.Details[0].Status; got != StatusAwaitingReference {
		t.Errorf("status = %q, want %q", got, StatusAwaitingReference)
	}
	if ev.fetchCalls != 0 {
		t.Errorf("fetch calls = %d, want 0 before the reference instant", ev.fetchCalls)
	}
}

func TestFetchFailureRetriesUntilStaleCutoff(t *testing.T) {
	fresh := pendingIntraday("fresh-failure", domain.DirectionUp, 100, 30)
	stale := pendingIntraday("stale-failure", domain.DirectionUp, 100, 90)
	store := newFakeStore(fresh, stale)
	ev := &fakeEvaluator{
		category: domain.CategoryCrypto,
		err:      errors.New("upstream 500"),
		stale:    time.Hour,
	}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}

	byID := make(map[string]RowResult)
	for _, d := range sum.Details {
		byID[d.ID] = d
	}
	if got := byID["fresh-failure"].Status; got != StatusRetryLater {
		t.Errorf("fresh row status = %q, want %q", got, StatusRetryLater)
	}
	if got := byID["stale-failure"].Status; got != StatusDataUnavailable {
		t.Errorf("stale row status = %q, want %q", got, StatusDataUnavailable)
	}

	p, _ := store.GetByID(context.Background(), "stale-failure")
	if p.Outcome == nil || *p.Outcome != domain.OutcomeDataUnavailable {
		t.Errorf("stale row outcome = %v, want Data Unavailable", p.Outcome)
	}
	if p.FinalPrice != nil {
		t.Errorf("stale row final price = %v, want nil", *p.FinalPrice)
	}
	fp, _ := store.GetByID(context.Background(), "fresh-failure")
	if fp.Outcome != nil {
		t.Errorf("fresh row was resolved to %v, want pending", *fp.Outcome)
	}
}

func TestZeroStaleAfterNeverGivesUp(t *testing.T) {
	// Crypto and forex trade continuously; their evaluators retry forever.
	old := pendingIntraday("very-old", domain.DirectionUp, 100, 60*24*7)
	store := newFakeStore(old)
	ev := &fakeEvaluator{category: domain.CategoryCrypto, err: errors.New("down"), stale: 0}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if got := sum.Details[0].Status; got != StatusRetryLater {
		t.Errorf("status = %q, want %q", got, StatusRetryLater)
	}
}

func TestPanicInOneRowDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore(
		pendingIntraday("poison", domain.DirectionUp, 100, 10),
		pendingIntraday("healthy", domain.DirectionUp, 100, 10),
	)
	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 120, panicOnID: "poison"}

	sum, err := newTestEngine(store, ev).RunCategory(context.Background(), domain.CategoryCrypto)
	if err != nil {
		t.Fatalf("RunCategory: %v", err)
	}
	if sum.Evaluated != 1 {
		t.Fatalf("evaluated = %d, want 1", sum.Evaluated)
	}

	byID := make(map[string]RowResult)
	for _, d := range sum.Details {
		byID[d.ID] = d
	}
	if got := byID["poison"].Status; got != StatusError {
		t.Errorf("poison status = %q, want %q", got, StatusError)
	}
	p, _ := store.GetByID(context.Background(), "healthy")
	if p.Outcome == nil || *p.Outcome != domain.OutcomeCorrect {
		t.Errorf("healthy outcome = %v, want Correct", p.Outcome)
	}
}

func TestConcurrentClaimReportsAlreadyEvaluated(t *testing.T) {
	p := pendingIntraday("contested", domain.DirectionUp, 100, 10)
	store := newFakeStore(p)

	// Another run wins the claim between ListPending and ClaimOutcome.
	if err := store.ClaimOutcome(context.Background(), "contested", domain.OutcomeCorrect, ptr(110.0), fixedNow()); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	ev := &fakeEvaluator{category: domain.CategoryCrypto, price: 90}
	e := newTestEngine(store, ev)
	res := e.processRow(context.Background(), ev, p)
	if res.Status != StatusAlreadyEvaluated {
		t.Fatalf("status = %q, want %q", res.Status, StatusAlreadyEvaluated)
	}

	got, _ := store.GetByID(context.Background(), "contested")
	if *got.Outcome != domain.OutcomeCorrect || *got.FinalPrice != 110 {
		t.Errorf("first claim was overwritten: outcome=%v final=%v", *got.Outcome, *got.FinalPrice)
	}
}

func TestUnknownCategoryIsRejected(t *testing.T) {
	store := newFakeStore()
	ev := &fakeEvaluator{category: domain.CategoryCrypto}
	e := newTestEngine(store, ev)

	_, err := e.RunCategory(context.Background(), domain.CategoryForex)
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestCategoriesFollowsRegistrationInFixedOrder(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, nil, nil, 0, testLogger)
	e.Register(&fakeEvaluator{category: domain.CategoryStocks})
	e.Register(&fakeEvaluator{category: domain.CategoryCrypto})

	got := e.Categories()
	want := []domain.Category{domain.CategoryCrypto, domain.CategoryStocks}
	if len(got) != len(want) {
		t.Fatalf("categories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("categories = %v, want %v", got, want)
		}
	}
}
