// Package openexchange fetches spot FX conversion rates from the public
// open.er-api.com endpoint.
package openexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source is the provenance string recorded on predictions priced here.
const Source = "open-exchange-rates"

// Client is the REST client for the open exchange-rate API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL defaults to the public host when empty.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://open.er-api.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RateToUSD returns the current conversion rate from base (e.g. "EUR") to
// USD.
func (c *Client) RateToUSD(ctx context.Context, base string) (float64, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	u := fmt.Sprintf("%s/v6/latest/%s", c.baseURL, url.PathEscape(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("openexchange: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("openexchange: rate %s: %w", base, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("openexchange: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("openexchange: rate %s: HTTP %d", base, resp.StatusCode)
	}

	var parsed struct {
		Result string             `json:"result"`
		Rates  map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("openexchange: decode rates %s: %w", base, err)
	}
	if parsed.Result != "success" {
		return 0, fmt.Errorf("openexchange: rate %s: result %q", base, parsed.Result)
	}

	usd, ok := parsed.Rates["USD"]
	if !ok || usd <= 0 {
		return 0, fmt.Errorf("openexchange: rate %s: no USD rate in response", base)
	}
	return usd, nil
}
