// Package exchangerate implements the live currency.RateSource over HTTP.
// Every lookup is GET <base-url>/<FROM>, guarded by a circuit breaker and a
// short bounded retry.
package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/currency"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/circuitbreaker"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/retry"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// DefaultBaseURL is the public endpoint used when none is configured.
const DefaultBaseURL = "https://open.er-api.com/v6/latest"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the exchange-rate client.
type ClientConfig struct {
	// BaseURL is the rates endpoint without the trailing currency segment.
	BaseURL string

	// Timeout bounds a single HTTP attempt. The caller's context bounds the
	// whole lookup.
	Timeout time.Duration

	// MaxAttempts is the number of HTTP attempts per lookup, first included.
	MaxAttempts int

	// BreakerThreshold is the consecutive failures that open the circuit.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	RateLimit RateLimiterConfig

	Logger *slog.Logger
	Clock  timeutil.Clock
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          5 * time.Second,
		MaxAttempts:      2,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
		RateLimit:        DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMalformedResponse is returned when the body has no rates object.
	ErrMalformedResponse = errors.New("exchangerate: malformed response")

	// ErrTransport wraps failures to reach the API or read its body.
	ErrTransport = errors.New("exchangerate: transport failure")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Base       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exchangerate: %s: unexpected status %d", e.Base, e.StatusCode)
}

// Temporary reports whether the API may answer differently later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// upstreamFailure reports whether err says the API itself is unhealthy.
// Caller mistakes, unknown currencies, a cancelled caller and the local
// limiter are healthy answers as far as the breaker is concerned.
func upstreamFailure(err error) bool {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Temporary()
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrRateLimited),
		shared.IsInvalid(err),
		shared.IsNotFound(err):
		return false
	default:
		return true
	}
}

// retryableFetch reports whether another attempt within the same lookup may
// help: only transport failures and 5xx. A 429 already paused the limiter.
func retryableFetch(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return errors.Is(err, ErrTransport)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client fetches live rates.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.Breaker
	retry      retry.Policy
	limiter    *RateLimiter
}

var _ currency.RateSource = (*Client)(nil)

// NewClient creates a new exchange-rate client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig(config.BaseURL)
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	config.BaseURL = strings.TrimRight(defaults.BaseURL, "/")
	config.Clock = timeutil.OrSystem(config.Clock)

	log := logger.OrDefault(config.Logger).With(logger.Component("exchangerate_client"))

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log,
		limiter:    NewRateLimiter(config.RateLimit, config.Clock),
	}

	c.breaker = circuitbreaker.New(circuitbreaker.Settings{
		Name:      "exchange-rate-api",
		Threshold: config.BreakerThreshold,
		Cooldown:  config.BreakerTimeout,
		IsFailure: upstreamFailure,
		OnTransition: func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		Clock: config.Clock,
	})
	c.retry = retry.RateAPI(config.MaxAttempts, retryableFetch,
		func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying exchange rate request",
				slog.Int("attempt", attempt), slog.Duration("delay", delay), logger.Err(err))
		})

	return c
}

// LatestRates returns every rate quoted against base.
func (c *Client) LatestRates(ctx context.Context, base string) (*currency.RateTable, error) {
	base = currency.NormalizeCode(base)
	if base == "" {
		return nil, currency.ErrInvalidCode
	}

	var table *currency.RateTable
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retry.Do(ctx, func(ctx context.Context) error {
			t, err := c.fetch(ctx, base)
			if err != nil {
				return err
			}
			table = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// fetch performs one GET. A 429 pauses the limiter.
func (c *Client) fetch(ctx context.Context, base string) (*currency.RateTable, error) {
	start := time.Now()
	endpoint := c.config.BaseURL + "/" + url.PathEscape(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: http request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	c.logger.Debug("exchange rate api response",
		slog.String("base", base),
		slog.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Base: base}
		if resp.StatusCode == http.StatusTooManyRequests {
			pause := parseRetryAfter(resp.Header.Get("Retry-After"), c.config.Clock.Now())
			c.limiter.Pause(pause)
			c.logger.Warn("exchange rate api throttled", slog.Duration("retry_after", pause))
		}
		return nil, statusErr
	}

	var dto LatestResponseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dto.Rates == nil {
		return nil, ErrMalformedResponse
	}

	return dto.ToRateTable(base), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// BreakerState returns the circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Reset closes the circuit breaker.
func (c *Client) Reset() {
	c.breaker.Reset()
}
