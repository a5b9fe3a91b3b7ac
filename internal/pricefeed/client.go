// Package pricefeed fetches current token quotes from an HTTP market-data
// provider. Unavailability is a normal condition: callers receive a nil
// quote and retry on their next cycle.
package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signal-tracker/internal/domain"
)

// DefaultRequestsPerSecond caps outbound provider calls.
const DefaultRequestsPerSecond = 5

// DefaultMaxRetries bounds transient-error retries per lookup.
const DefaultMaxRetries = 3

// Client is a rate-limited HTTP price source with exponential-backoff
// retries on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client  // optional
	RequestsPerSecond float64       // <= 0 selects DefaultRequestsPerSecond
	MaxRetries        int           // <= 0 selects DefaultMaxRetries
	Timeout           time.Duration // per-request, default 10s
	Logger            *zap.Logger   // optional
}

// New creates a Client.
func New(opts Options) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

type quoteResponse struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// Lookup fetches the current quote for a token. A provider 404 or an
// exhausted retry budget yields (nil, nil): price gaps must not look like
// engine failures.
func (c *Client) Lookup(ctx context.Context, tokenAddress string) (*domain.PriceQuote, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("pricefeed: empty token address")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		quote, retryable, err := c.fetch(ctx, tokenAddress)
		if err == nil {
			return quote, nil
		}
		if !retryable || attempt >= c.maxRetries {
			c.logger.Warn("price lookup unavailable",
				zap.String("token", tokenAddress),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil, nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// fetch performs one provider call. The bool reports whether the error is
// worth retrying.
func (c *Client) fetch(ctx context.Context, tokenAddress string) (*domain.PriceQuote, bool, error) {
	url := fmt.Sprintf("%s/v1/price/%s", c.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// Unknown token: not an error, just no quote.
		io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("provider status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, true, fmt.Errorf("decode quote: %w", err)
	}
	if body.Price <= 0 {
		return nil, false, nil
	}
	return &domain.PriceQuote{Price: body.Price, MarketCap: body.MarketCap}, false, nil
}
