// Package yahoo fetches equity, index, and futures quotes from the Yahoo
// Finance chart endpoint. Besides the regular market price it exposes the
// previous close and the intraday close series, which lightly-traded symbols
// (typically BSE listings) need as a fallback chain.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Source is the provenance string recorded on predictions priced here.
const Source = "yahoo-chart"

// Quote is one chart snapshot for a symbol.
type Quote struct {
	Symbol             string
	RegularMarketPrice *float64
	PreviousClose      *float64
	// Closes is the intraday close series; entries may be nil where the
	// feed has gaps.
	Closes []*float64
}

// LastClose returns the last non-nil entry of the intraday close series.
func (q Quote) LastClose() (float64, bool) {
	for i := len(q.Closes) - 1; i >= 0; i-- {
		if q.Closes[i] != nil {
			return *q.Closes[i], true
		}
	}
	return 0, false
}

// Client is the REST client for the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL defaults to the public query host when
// empty.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Chart fetches a one-day, one-minute-interval chart for the symbol.
func (c *Client) Chart(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// The chart endpoint rejects requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; verivo-engine/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Quote{}, fmt.Errorf("yahoo: chart %s: HTTP %d", symbol, resp.StatusCode)
	}

	var parsed struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice *float64 `json:"regularMarketPrice"`
					PreviousClose      *float64 `json:"previousClose"`
					ChartPreviousClose *float64 `json:"chartPreviousClose"`
				} `json:"meta"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Quote{}, fmt.Errorf("yahoo: decode chart %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return Quote{}, fmt.Errorf("yahoo: chart %s: %s (%s)",
			symbol, parsed.Chart.Error.Description, parsed.Chart.Error.Code)
	}
	if len(parsed.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("yahoo: chart %s: empty result", symbol)
	}

	r := parsed.Chart.Result[0]
	q := Quote{
		Symbol:             symbol,
		RegularMarketPrice: r.Meta.RegularMarketPrice,
		PreviousClose:      r.Meta.PreviousClose,
	}
	if q.PreviousClose == nil {
		q.PreviousClose = r.Meta.ChartPreviousClose
	}
	if len(r.Indicators.Quote) > 0 {
		q.Closes = r.Indicators.Quote[0].Close
	}
	return q, nil
}
