// Package exchange fetches the VES/USD reference rate from an external
// API and caches it, so pricing screens can show bolivar amounts without
// hammering the upstream service.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CacheTTL is how long a fetched rate stays fresh.
const CacheTTL = 15 * time.Minute

const requestTimeout = 10 * time.Second

// Rate is a currency rate snapshot.
type Rate struct {
	Currency  string          `json:"currency"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// apiResponse mirrors the upstream payload shape. Only the fields we read
// are declared.
type apiResponse struct {
	Monitors map[string]struct {
		Price float64 `json:"price"`
	} `json:"monitors"`
}

// Client fetches rates with a TTL cache. A stale cache entry is served when
// the upstream is unreachable, so a flaky rate API never blocks checkout
// screens.
type Client struct {
	url  string
	http *http.Client

	mu     sync.Mutex
	cached *Rate
}

// NewClient creates a new exchange rate client for the given API URL.
func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// GetRate returns the USD reference rate, from cache when fresh.
func (c *Client) GetRate(ctx context.Context) (Rate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Since(c.cached.FetchedAt) < CacheTTL {
		return *c.cached, nil
	}

	rate, err := c.fetch(ctx)
	if err != nil {
		// Serve the stale rate rather than nothing
		if c.cached != nil {
			return *c.cached, nil
		}
		return Rate{}, err
	}

	c.cached = &rate
	return rate, nil
}

func (c *Client) fetch(ctx context.Context) (Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Rate{}, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Rate{}, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("fetch rate: unexpected status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Rate{}, fmt.Errorf("decode rate response: %w", err)
	}

	monitor, ok := payload.Monitors["usd"]
	if !ok {
		return Rate{}, fmt.Errorf("decode rate response: usd monitor missing")
	}
	if monitor.Price <= 0 {
		return Rate{}, fmt.Errorf("decode rate response: non-positive price %v", monitor.Price)
	}

	return Rate{
		Currency:  "USD",
		Price:     decimal.NewFromFloat(monitor.Price),
		FetchedAt: time.Now(),
	}, nil
}
