// Package oracle fetches spot prices from a Binance-compatible exchange API.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"crypto-calls-dashboard/config"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Client queries the exchange's public ticker endpoint. It holds no API
// credentials; the price endpoint is unauthenticated.
type Client struct {
	baseURL     string
	maxParallel int
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates a price oracle client
func NewClient(cfg config.OracleConfig, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		maxParallel: maxParallel,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "oracle").Logger(),
	}
}

type tickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
}

// GetPrice fetches the current price for one symbol
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("error building price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching price for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API error for %s: %s", symbol, string(body))
	}

	var ticker tickerPrice
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("error parsing price for %s: %w", symbol, err)
	}
	if ticker.Price <= 0 {
		return 0, fmt.Errorf("non-positive price for %s", symbol)
	}

	return ticker.Price, nil
}

// Snapshot fetches prices for the given symbols concurrently. Symbols that
// fail are logged and omitted from the result, so one bad symbol never blocks
// the rest of a resolution tick.
func (c *Client) Snapshot(ctx context.Context, symbols []string) map[string]float64 {
	prices := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return prices
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			price, err := c.GetPrice(gctx, symbol)
			if err != nil {
				c.logger.Warn().Err(err).Str("symbol", symbol).Msg("price fetch failed, skipping symbol this tick")
				return nil
			}
			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return prices
}
