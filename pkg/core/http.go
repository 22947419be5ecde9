package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/NERVsystems/greenroute/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions performs a single attempt. Operators opt into retries.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  1,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// NewHTTPClient returns an HTTP client with pooled connections and the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// RequestFactory is a function that creates a new HTTP request
// This approach allows for retrying requests with bodies
type RequestFactory func(ctx context.Context) (*http.Request, error)

// retryableStatus reports statuses that indicate a transient upstream problem.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}

// WithRetry executes requests built by factory with exponential backoff.
//
// Transport errors and retryable statuses are retried up to MaxAttempts; once
// exhausted the returned error has code PROVIDER_UNAVAILABLE. Any other status
// is handed back to the caller with the body open, so it can decode the
// provider's error payload.
func WithRetry(ctx context.Context, service string, factory RequestFactory, client *http.Client, options RetryOptions, logger *slog.Logger) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.request "+service,
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderService, service),
			attribute.Int("http.retry.max_attempts", options.MaxAttempts),
		),
	)
	defer span.End()

	if client == nil {
		client = NewHTTPClient(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}

	var lastErr error
	delay := options.InitialDelay

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int("attempt", attempt+1),
					attribute.Int64("delay_ms", delay.Milliseconds()),
					attribute.String("error", fmt.Sprintf("%v", lastErr)),
				),
			)

			logger.Info("retrying request",
				"service", service,
				"attempt", attempt+1,
				"max_attempts", options.MaxAttempts,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.SetStatus(codes.Error, "request cancelled")
				return nil, NewProviderUnavailableError(service, ctx.Err())
			}

			delay = time.Duration(float64(delay) * options.Multiplier)
			if delay > options.MaxDelay {
				delay = options.MaxDelay
			}
		}

		req, err := factory(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request creation failed")
			return nil, NewError(ErrInternalError, "failed to create request").WithCause(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("request failed",
				"service", service,
				"error", err,
				"attempt", attempt+1,
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		span.SetAttributes(
			attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
			attribute.Int("http.retry.attempts", attempt+1),
		)

		if !retryableStatus(resp.StatusCode) {
			if resp.StatusCode == http.StatusOK {
				span.SetStatus(codes.Ok, "")
			}
			logger.Debug("request completed",
				"service", service,
				"status", resp.StatusCode,
				"content_length", resp.ContentLength,
			)
			return resp, nil
		}

		lastErr = ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
		logger.Warn("request returned retryable status",
			"service", service,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "request failed")

	if IsRetryable(lastErr) {
		return nil, lastErr
	}
	return nil, NewProviderUnavailableError(service, lastErr)
}
