// Package provider is a client for Mapbox-compatible geocoding and
// directions APIs. Every lookup consults a ResponseCache before the network.
package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

const (
	// DefaultBaseURL is the public Mapbox API.
	DefaultBaseURL = "https://api.mapbox.com"
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "greenroute/1.0"

	maxResponseBytes = 10 << 20
)

// Config holds connection settings for the provider.
type Config struct {
	BaseURL           string
	AccessToken       string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             core.RetryOptions
}

// Client talks to the geocoding and directions endpoints.
type Client struct {
	baseURL     string
	accessToken string
	userAgent   string
	retry       core.RetryOptions

	httpClient      *http.Client
	limiter         *rate.Limiter
	geocodeCache    *cache.ResponseCache[GeocodeResult]
	directionsCache *cache.ResponseCache[Route]
	hooks           MonitoringHooks
	logger          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithGeocodingCache installs the cache for forward and reverse geocoding.
func WithGeocodingCache(rc *cache.ResponseCache[GeocodeResult]) Option {
	return func(c *Client) { c.geocodeCache = rc }
}

// WithDirectionsCache installs the cache for directions.
func WithDirectionsCache(rc *cache.ResponseCache[Route]) Option {
	return func(c *Client) { c.directionsCache = rc }
}

// WithMonitoringHooks installs request hooks.
func WithMonitoringHooks(h MonitoringHooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a provider client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = core.DefaultRetryOptions
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		userAgent:   cfg.UserAgent,
		retry:       cfg.Retry,
		httpClient:  core.NewHTTPClient(cfg.Timeout),
		limiter:     rate.NewLimiter(limit, burst),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "provider")
	return c
}

// Caches exposes the installed caches for stats and flushing. Either may be nil.
func (c *Client) Caches() (*cache.ResponseCache[GeocodeResult], *cache.ResponseCache[Route]) {
	return c.geocodeCache, c.directionsCache
}

// waitForRateLimit blocks until the outbound limiter admits a request.
func (c *Client) waitForRateLimit(ctx context.Context, service string) error {
	if c.limiter.Allow() {
		return nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrProviderService, service)))

	err := c.limiter.Wait(ctx)

	wait := time.Since(start)
	tracing.SetAttributes(ctx, attribute.Int64(tracing.AttrRateLimitWaitMs, wait.Milliseconds()))
	if c.hooks.OnRateLimit != nil {
		c.hooks.OnRateLimit(service, wait)
	}
	return err
}

// endpoint builds an API URL with the access token attached.
func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.accessToken != "" {
		query.Set("access_token", c.accessToken)
	}
	return c.baseURL + path + "?" + query.Encode()
}

// get performs a rate-limited, monitored GET and returns the body and status.
func (c *Client) get(ctx context.Context, service, operation, rawURL string) ([]byte, int, error) {
	if c.hooks.OnRequest != nil {
		c.hooks.OnRequest(service, operation)
	}

	if err := c.waitForRateLimit(ctx, service); err != nil {
		c.onError(service, "rate_limit_wait")
		return nil, 0, core.NewProviderUnavailableError(service, err)
	}

	factory := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	start := time.Now()
	resp, err := core.WithRetry(ctx, service, factory, c.httpClient, c.retry, c.logger)
	if err != nil {
		c.onResponse(service, operation, time.Since(start), false)
		c.onError(service, "request_error")
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	if err != nil {
		c.onResponse(service, operation, duration, false)
		c.onError(service, "read_error")
		return nil, resp.StatusCode, core.NewProviderUnavailableError(service, fmt.Errorf("reading response: %w", err))
	}

	c.onResponse(service, operation, duration, resp.StatusCode == http.StatusOK)
	return body, resp.StatusCode, nil
}

func (c *Client) onResponse(service, operation string, d time.Duration, success bool) {
	if c.hooks.OnResponse != nil {
		c.hooks.OnResponse(service, operation, d, success)
	}
}

func (c *Client) onError(service, errorType string) {
	if c.hooks.OnError != nil {
		c.hooks.OnError(service, errorType)
	}
}

// rejected converts a non-200 response into an error, using the provider's
// message when the body carries one.
func rejected(service string, status int, body []byte) error {
	msg := http.StatusText(status)
	if m := errorMessage(body); m != "" {
		msg = m
	}
	return core.ServiceError(service, status, msg)
}

// CheckHealth verifies that the provider answers an authenticated request.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rawURL := c.endpoint("/geocoding/v5/mapbox.places/0,0.json", url.Values{"limit": {"1"}})
	_, status, err := c.get(ctx, tracing.ServiceGeocoding, "health", rawURL)
	if err != nil {
		return fmt.Errorf("provider health check failed: %w", err)
	}
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("provider health check returned status %d", status)
	}
	return nil
}

// requireToken fails fast when the public API is targeted without a token.
func (c *Client) requireToken() error {
	if c.accessToken == "" && c.baseURL == DefaultBaseURL {
		return core.NewError(core.ErrProviderRejected, "provider access token is not configured").
			WithGuidance("Set MAPBOX_ACCESS_TOKEN or provider.access_token")
	}
	return nil
}
