package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// stockFetchRetries is the number of retries after the first failed fetch.
const stockFetchRetries = 3

// chartSource fetches equity chart quotes. Satisfied by *service.QuoteService.
type chartSource interface {
	Chart(ctx context.Context, symbol string) (yahoo.Quote, error)
}

// StocksEvaluator resolves stock predictions. The chart fetch is retried
// with a short backoff, and the price is taken through the fallback chain
// (regular market price, last non-null intraday close, previous close) so
// lightly-traded BSE symbols that omit regularMarketPrice still resolve.
type StocksEvaluator struct {
	quotes chartSource

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewStocksEvaluator creates a StocksEvaluator.
func NewStocksEvaluator(quotes *service.QuoteService) *StocksEvaluator {
	return &StocksEvaluator{
		quotes:         quotes,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     2 * time.Second,
	}
}

func (e *StocksEvaluator) Category() domain.Category { return domain.CategoryStocks }

func (e *StocksEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	sym, ok := RecoverSymbol(p)
	if !ok {
		return 0, "", fmt.Errorf("validator: stock %s: no symbol recoverable", p.ID)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.initialBackoff
	policy.MaxInterval = e.maxBackoff

	var price float64
	err := backoff.Retry(func() error {
		q, err := e.quotes.Chart(ctx, sym)
		if err != nil {
			return err
		}
		got, ok := service.PriceFromChart(q)
		if !ok {
			return fmt.Errorf("chart %s: %w", sym, domain.ErrPriceUnavailable)
		}
		price = got
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, stockFetchRetries), ctx))
	if err != nil {
		return 0, "", fmt.Errorf("validator: stock %s: %w", sym, err)
	}
	return price, yahoo.Source, nil
}

func (e *StocksEvaluator) StaleAfter() time.Duration { return staleCutoff }
