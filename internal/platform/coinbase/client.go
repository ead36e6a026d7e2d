// Package coinbase is a minimal client for the public Coinbase spot-price
// endpoint. It prices crypto assets directly ({SYM}-USD) and gold/silver via
// tokenized commodity pairs (PAXG-USD, KAG-USD).
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Source is the provenance string recorded on predictions priced here.
const Source = "coinbase-spot"

// Client is the REST client for the Coinbase public data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL defaults to the public API host when
// empty.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.coinbase.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Spot returns the current spot price for a trading pair such as "BTC-USD".
func (c *Client) Spot(ctx context.Context, pair string) (float64, error) {
	u := fmt.Sprintf("%s/v2/prices/%s/spot", c.baseURL, url.PathEscape(pair))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("coinbase: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coinbase: spot %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("coinbase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("coinbase: spot %s: HTTP %d: %s", pair, resp.StatusCode, body)
	}

	var parsed struct {
		Data struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("coinbase: decode spot %s: %w", pair, err)
	}

	price, err := strconv.ParseFloat(parsed.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse amount %q: %w", parsed.Data.Amount, err)
	}
	return price, nil
}
