// Package service implements the prediction creation workflow and the quote
// resolution layer in front of the external price sources.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/markethours"
	"github.com/verivolabs/verivo-engine/internal/platform/coinbase"
	"github.com/verivolabs/verivo-engine/internal/platform/openexchange"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
)

// SpotClient fetches spot prices for "{SYM}-USD" style pairs.
type SpotClient interface {
	Spot(ctx context.Context, pair string) (float64, error)
}

// FXClient fetches spot conversion rates into USD.
type FXClient interface {
	RateToUSD(ctx context.Context, base string) (float64, error)
}

// ChartClient fetches equity/index/futures chart quotes.
type ChartClient interface {
	Chart(ctx context.Context, symbol string) (yahoo.Quote, error)
}

// Tokenized commodity pairs used as spot proxies for the metals.
const (
	goldPair   = "PAXG-USD"
	silverPair = "KAG-USD"
)

// Futures symbols for the energy commodities.
const (
	wtiFutures    = "CL=F"
	natGasFutures = "NG=F"
)

// QuoteService resolves reference and final prices per asset class. All
// fetches are best effort: a network or parse failure yields a nil price and
// a log line, never a panic. The two opening-cutoff violations are the only
// errors that propagate to callers as user-facing failures.
type QuoteService struct {
	spot   SpotClient
	fx     FXClient
	charts ChartClient
	hours  *markethours.Oracle
	cache  domain.QuoteCache // optional
	logger *slog.Logger
	now    func() time.Time
}

// NewQuoteService creates a QuoteService. cache may be nil to disable
// short-TTL quote caching.
func NewQuoteService(spot SpotClient, fx FXClient, charts ChartClient, hours *markethours.Oracle, cache domain.QuoteCache, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		spot:   spot,
		fx:     fx,
		charts: charts,
		hours:  hours,
		cache:  cache,
		logger: logger.With(slog.String("component", "quotes")),
		now:    time.Now,
	}
}

// ReferenceRequest describes the asset whose reference price is needed.
type ReferenceRequest struct {
	MarketType domain.MarketType
	Category   domain.Category
	Identifier string
	Mode       domain.PredictionType
}

// Reference resolves the reference price (or the deferred capture instant)
// for a new prediction.
func (s *QuoteService) Reference(ctx context.Context, req ReferenceRequest) (domain.Quote, error) {
	now := s.now()

	switch req.Category {
	case domain.CategoryCrypto:
		return s.bestEffort(ctx, coinbase.Source, now, func() (float64, error) {
			return s.CryptoSpot(ctx, req.Identifier)
		}), nil

	case domain.CategoryForex:
		if req.Mode == domain.PredictionTypeOpening {
			open, err := s.hours.LondonOpenReference(now)
			if err != nil {
				return domain.Quote{}, err
			}
			return domain.Quote{Time: open, Source: openexchange.Source}, nil
		}
		return s.bestEffort(ctx, openexchange.Source, now, func() (float64, error) {
			return s.ForexUSD(ctx, req.Identifier)
		}), nil

	case domain.CategoryCommodities:
		canonical := domain.CanonicalCommodity(req.Identifier)
		if req.Mode == domain.PredictionTypeOpening {
			open, err := s.hours.USOpenReference(now)
			if err != nil {
				return domain.Quote{}, err
			}
			return domain.Quote{Time: open, Source: commoditySource(canonical)}, nil
		}
		return s.bestEffort(ctx, commoditySource(canonical), now, func() (float64, error) {
			return s.CommodityPrice(ctx, canonical)
		}), nil

	case domain.CategoryIndices, domain.CategoryStocks:
		if req.Mode == domain.PredictionTypeOpening {
			open, err := s.hours.NextOpen(req.Identifier, now)
			if err != nil {
				return domain.Quote{}, err
			}
			return domain.Quote{Time: open, Source: yahoo.Source}, nil
		}
		return s.bestEffort(ctx, yahoo.Source, now, func() (float64, error) {
			return s.ChartPrice(ctx, req.Identifier)
		}), nil
	}

	return domain.Quote{}, fmt.Errorf("quotes: %w: %q", domain.ErrUnknownCategory, req.Category)
}

// bestEffort runs a fetch and degrades to a nil-price quote on failure.
func (s *QuoteService) bestEffort(ctx context.Context, source string, now time.Time, fetch func() (float64, error)) domain.Quote {
	price, err := fetch()
	if err != nil {
		s.logger.WarnContext(ctx, "reference fetch failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return domain.Quote{Time: now, Source: source}
	}
	return domain.Quote{Price: &price, Time: now, Source: source}
}

// CryptoSpot returns the current USD spot price for a crypto symbol.
func (s *QuoteService) CryptoSpot(ctx context.Context, symbol string) (float64, error) {
	pair := cleanSymbol(symbol) + "-USD"
	return s.cached(ctx, "spot:"+pair, func() (float64, error) {
		return s.spot.Spot(ctx, pair)
	})
}

// ForexUSD returns the current conversion rate from the pair's base currency
// to USD. Identifiers longer than three characters (e.g. "EURUSD") are
// truncated to the base.
func (s *QuoteService) ForexUSD(ctx context.Context, identifier string) (float64, error) {
	base := cleanSymbol(identifier)
	if len(base) > 3 {
		base = base[:3]
	}
	return s.cached(ctx, "fx:"+base, func() (float64, error) {
		return s.fx.RateToUSD(ctx, base)
	})
}

// CommodityPrice returns the current USD price for a canonical commodity
// symbol. Gold and silver are priced through tokenized spot pairs, WTI and
// natural gas through their front-month futures.
func (s *QuoteService) CommodityPrice(ctx context.Context, canonical string) (float64, error) {
	switch canonical {
	case "XAU":
		return s.cached(ctx, "spot:"+goldPair, func() (float64, error) {
			return s.spot.Spot(ctx, goldPair)
		})
	case "XAG":
		return s.cached(ctx, "spot:"+silverPair, func() (float64, error) {
			return s.spot.Spot(ctx, silverPair)
		})
	case "WTI":
		return s.ChartPrice(ctx, wtiFutures)
	case "NG":
		return s.ChartPrice(ctx, natGasFutures)
	}
	return 0, fmt.Errorf("quotes: unsupported commodity %q", canonical)
}

// ChartPrice returns the most-recent-trade price for an equity, index, or
// futures symbol. When the market is closed the chart endpoint naturally
// reports the last close.
func (s *QuoteService) ChartPrice(ctx context.Context, symbol string) (float64, error) {
	return s.cached(ctx, "chart:"+symbol, func() (float64, error) {
		q, err := s.charts.Chart(ctx, symbol)
		if err != nil {
			return 0, err
		}
		price, ok := PriceFromChart(q)
		if !ok {
			return 0, fmt.Errorf("quotes: chart %s: %w", symbol, domain.ErrPriceUnavailable)
		}
		return price, nil
	})
}

// Chart exposes the raw chart quote for callers that need the fallback
// series themselves (the stocks validator).
func (s *QuoteService) Chart(ctx context.Context, symbol string) (yahoo.Quote, error) {
	return s.charts.Chart(ctx, symbol)
}

// PriceFromChart picks a usable price out of a chart quote: the regular
// market price when present, else the last non-null intraday close, else the
// previous close. Lightly-traded BSE symbols routinely miss the first field.
func PriceFromChart(q yahoo.Quote) (float64, bool) {
	if q.RegularMarketPrice != nil {
		return *q.RegularMarketPrice, true
	}
	if last, ok := q.LastClose(); ok {
		return last, true
	}
	if q.PreviousClose != nil {
		return *q.PreviousClose, true
	}
	return 0, false
}

// cached consults the short-TTL quote cache before hitting the network and
// writes fresh samples back. Cache failures are ignored; the source of truth
// is always the upstream fetch.
func (s *QuoteService) cached(ctx context.Context, key string, fetch func() (float64, error)) (float64, error) {
	if s.cache != nil {
		if price, _, err := s.cache.GetQuote(ctx, key); err == nil {
			return price, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.DebugContext(ctx, "quote cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	price, err := fetch()
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetQuote(ctx, key, price, s.now()); err != nil {
			s.logger.DebugContext(ctx, "quote cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return price, nil
}

func commoditySource(canonical string) string {
	switch canonical {
	case "XAU", "XAG":
		return coinbase.Source
	default:
		return yahoo.Source
	}
}

func cleanSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
