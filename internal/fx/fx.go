// Package fx maintains USD-relative exchange rates for cross-currency
// price comparison.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// defaultRates seed the table so conversion works before the first refresh
// or when the feed is unreachable. USD is always pinned to 1.
var defaultRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"TRY": 34.5,
	"JPY": 149.0,
	"CNY": 7.2,
	"CAD": 1.36,
	"AUD": 1.52,
}

// Table holds currency → USD-relative rates behind a RWMutex. Refresh swaps
// the whole map; readers always see a consistent table.
type Table struct {
	mu          sync.RWMutex
	rates       map[string]float64
	lastRefresh time.Time

	url    string
	client *http.Client
	logger *slog.Logger
}

// New returns a Table seeded with the built-in defaults.
func New(url string, timeout time.Duration, logger *slog.Logger) *Table {
	rates := make(map[string]float64, len(defaultRates))
	for ccy, rate := range defaultRates {
		rates[ccy] = rate
	}
	return &Table{
		rates:  rates,
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "fx"),
	}
}

// Refresh fetches the feed and swaps the table in. Any failure leaves the
// previous rates untouched.
func (t *Table) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return fmt.Errorf("building fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching fx rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fx feed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding fx response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return fmt.Errorf("fx feed returned no rates")
	}

	rates := make(map[string]float64, len(payload.Rates))
	for ccy, rate := range payload.Rates {
		if rate > 0 {
			rates[strings.ToUpper(ccy)] = rate
		}
	}
	rates["USD"] = 1

	t.mu.Lock()
	t.rates = rates
	t.lastRefresh = time.Now()
	t.mu.Unlock()

	t.logger.Info("fx rates refreshed", "currencies", len(rates))
	return nil
}

// Rate returns the USD-relative rate for a currency.
func (t *Table) Rate(currency string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rate, ok := t.rates[strings.ToUpper(currency)]
	if !ok || rate == 0 {
		return 0, false
	}
	return rate, true
}

// ToUSD converts amount from the given currency. When the rate is missing
// or zero, the amount comes back unchanged so sorting stays stable.
func (t *Table) ToUSD(amount float64, currency string) float64 {
	rate, ok := t.Rate(currency)
	if !ok {
		return amount
	}
	return amount / rate
}

// Rates returns a copy of the current table for read-only use.
func (t *Table) Rates() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]float64, len(t.rates))
	for ccy, rate := range t.rates {
		out[ccy] = rate
	}
	return out
}

// LastRefresh reports when the table last changed; zero before any
// successful refresh.
func (t *Table) LastRefresh() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRefresh
}
