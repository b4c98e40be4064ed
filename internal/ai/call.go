package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/metrics"
)

// caller bounds a single provider request with a deadline and retries
// transient server errors. Rate limits are not retried here; KeyRing handles
// them by rotating keys.
type caller struct {
	provider   string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

func newCaller(provider string, cfg config.AIConfig, log *slog.Logger) caller {
	return caller{
		provider:   provider,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        log,
	}
}

func (c caller) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := retry.Do(
		func() error { return fn(reqCtx) },
		retry.Context(reqCtx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Retrying AI request after transient error",
				"operation", operation, "attempt", n+1, "max_retries", c.maxRetries, "error", err)
		}),
	)
	metrics.ObserveAIRequest(c.provider, operation, start, err)

	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		c.log.WarnContext(ctx, "AI request timed out", "operation", operation, "timeout", c.timeout)
		return fmt.Errorf("%w: %s exceeded %s", ErrRequestTimeout, operation, c.timeout)
	}
	return fmt.Errorf("%s %s request failed: %w", c.provider, operation, err)
}

// isTransient reports whether a provider error is worth retrying with the
// same key.
func isTransient(err error) bool {
	var code int
	var gErr genai.APIError
	var gErrPtr *genai.APIError
	var oErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &gErr):
		code = gErr.Code
	case errors.As(err, &gErrPtr) && gErrPtr != nil:
		code = gErrPtr.Code
	case errors.As(err, &oErr):
		code = oErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	default:
		return false
	}
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
