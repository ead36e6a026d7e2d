package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// staleCutoff is how long past unlock the exchange-hours categories keep
// retrying before closing a row as Data Unavailable.
const staleCutoff = time.Hour

// CommoditiesEvaluator resolves commodity predictions: metals via the
// tokenized spot proxies, energy via front-month futures.
type CommoditiesEvaluator struct {
	quotes *service.QuoteService
}

// NewCommoditiesEvaluator creates a CommoditiesEvaluator.
func NewCommoditiesEvaluator(quotes *service.QuoteService) *CommoditiesEvaluator {
	return &CommoditiesEvaluator{quotes: quotes}
}

func (e *CommoditiesEvaluator) Category() domain.Category { return domain.CategoryCommodities }

func (e *CommoditiesEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	canonical := canonicalFromPrediction(p)
	if canonical == "" {
		return 0, "", fmt.Errorf("validator: commodity %s: no symbol recoverable", p.ID)
	}
	price, err := e.quotes.CommodityPrice(ctx, canonical)
	if err != nil {
		return 0, "", err
	}
	return price, p.DataSource, nil
}

func (e *CommoditiesEvaluator) StaleAfter() time.Duration { return staleCutoff }

// canonicalFromPrediction prefers the asset key's canonical segment
// ("commodity:xau" → XAU) and falls back to re-canonicalizing a recovered
// symbol.
func canonicalFromPrediction(p domain.Prediction) string {
	if rest, ok := strings.CutPrefix(p.AssetKey, "commodity:"); ok && rest != "" {
		return strings.ToUpper(rest)
	}
	if sym, ok := RecoverSymbol(p); ok {
		return domain.CanonicalCommodity(sym)
	}
	return ""
}
