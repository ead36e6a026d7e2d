package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/platform/openexchange"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// ForexEvaluator resolves forex predictions against the base→USD spot rate.
// Like crypto, a failed fetch retries forever; FX rates are continuously
// republished.
type ForexEvaluator struct {
	quotes *service.QuoteService
}

// NewForexEvaluator creates a ForexEvaluator.
func NewForexEvaluator(quotes *service.QuoteService) *ForexEvaluator {
	return &ForexEvaluator{quotes: quotes}
}

func (e *ForexEvaluator) Category() domain.Category { return domain.CategoryForex }

func (e *ForexEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	sym, ok := RecoverSymbol(p)
	if !ok {
		return 0, "", fmt.Errorf("validator: forex %s: no symbol recoverable", p.ID)
	}
	rate, err := e.quotes.ForexUSD(ctx, sym)
	if err != nil {
		return 0, "", err
	}
	return rate, openexchange.Source, nil
}

func (e *ForexEvaluator) StaleAfter() time.Duration { return 0 }
