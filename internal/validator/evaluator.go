// Package validator implements the batch outcome-resolution engine. One
// generic engine drives five per-asset-class evaluators over the shared
// predictions table; all coordination between runs happens through the rows
// themselves.
package validator

import (
	"context"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// Evaluator supplies the per-asset-class pieces of the batch algorithm: its
// category partition and its price source. The engine owns everything else.
type Evaluator interface {
	// Category is the partition of the predictions table this evaluator
	// serves. Workers never overlap, so no cross-worker coordination exists.
	Category() domain.Category

	// FetchPrice returns the current price and provenance for the
	// prediction's asset. It is used both to backfill deferred opening
	// references and to sample the final price.
	FetchPrice(ctx context.Context, p domain.Prediction) (float64, string, error)

	// StaleAfter is how long past its unlock time a row may keep failing to
	// price before it is closed as Data Unavailable. Zero means retry on
	// every run indefinitely.
	StaleAfter() time.Duration
}
