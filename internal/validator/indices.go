package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// IndicesEvaluator resolves index predictions against the chart endpoint,
// which reports the last close while the market is shut.
type IndicesEvaluator struct {
	quotes *service.QuoteService
}

// NewIndicesEvaluator creates an IndicesEvaluator.
func NewIndicesEvaluator(quotes *service.QuoteService) *IndicesEvaluator {
	return &IndicesEvaluator{quotes: quotes}
}

func (e *IndicesEvaluator) Category() domain.Category { return domain.CategoryIndices }

func (e *IndicesEvaluator) FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error) {
	sym, ok := RecoverSymbol(p)
	if !ok {
		return 0, "", fmt.Errorf("validator: index %s: no symbol recoverable", p.ID)
	}
	price, err := e.quotes.ChartPrice(ctx, sym)
	if err != nil {
		return 0, "", err
	}
	return price, yahoo.Source, nil
}

func (e *IndicesEvaluator) StaleAfter() time.Duration { return staleCutoff }
