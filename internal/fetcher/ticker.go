package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const tickerPath = "/api/v3/ticker/price"

// TickerOptions parameterise the exchange ticker fetcher.
type TickerOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Ticker fetches spot prices from a Binance-compatible ticker endpoint.
type Ticker struct {
	opts    TickerOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewTicker constructs a ticker fetcher.
func NewTicker(opts TickerOptions, logger zerolog.Logger) *Ticker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}

	return &Ticker{
		opts:    opts,
		logger:  logger.With().Str("component", "ticker_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrice retrieves the latest traded price for symbol.
func (t *Ticker) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		return decimal.Decimal{}, errors.New("symbol is required")
	}

	endpoint := fmt.Sprintf("%s%s?symbol=%s", t.baseURL, tickerPath, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(t.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "tradesentry/1.0")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("ticker endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode ticker response: %w", err)
	}

	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse ticker price %q: %w", payload.Price, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, fmt.Errorf("ticker price for %s is not positive: %s", symbol, price)
	}

	t.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("ticker price fetched")
	return price, nil
}

var _ PriceFetcher = (*Ticker)(nil)
