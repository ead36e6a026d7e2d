package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes with a TTL.
// Each quote is stored at "quote:{key}" with fields "price" and "ts"; the
// key expires after the configured TTL so validators never evaluate against
// stale samples.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. A zero ttl
// defaults to 30 seconds.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(key string) string {
	return "quote:" + key
}

// SetQuote stores the latest price sample for an asset key.
func (qc *QuoteCache) SetQuote(ctx context.Context, key string, price float64, ts time.Time) error {
	k := quoteKey(key)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, k, fields)
	pipe.Expire(ctx, k, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the cached price sample for an asset key. It returns
// domain.ErrNotFound on a miss.
func (qc *QuoteCache) GetQuote(ctx context.Context, key string) (float64, time.Time, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, domain.ErrNotFound
		}
		return 0, time.Time{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse quote price %s: %w", key, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse quote ts %s: %w", key, err)
	}
	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
