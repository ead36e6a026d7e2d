package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/platform/coinbase"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// CryptoEvaluator resolves crypto predictions against the spot feed. Crypto
// trades around the clock, so a failed fetch is always retried on the next
// run rather than ever going stale.
type CryptoEvaluator struct {
	quotes *service.QuoteService
}

// NewCryptoEvaluator creates a CryptoEvaluator.
func NewCryptoEvaluator(quotes *service.QuoteService) *CryptoEvaluator {
	return &CryptoEvaluator{quotes: quotes}
}

func (e *CryptoEvaluator) Category() domain.Category { return domain.CategoryCrypto }

func (e *CryptoEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	sym, ok := RecoverSymbol(p)
	if !ok {
		return 0, "", fmt.Errorf("validator: crypto %s: no symbol recoverable", p.ID)
	}
	price, err := e.quotes.CryptoSpot(ctx, sym)
	if err != nil {
		return 0, "", err
	}
	return price, coinbase.Source, nil
}

func (e *CryptoEvaluator) StaleAfter() time.Duration { return 0 }
