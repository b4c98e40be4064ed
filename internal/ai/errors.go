package ai

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

var (
	// ErrUnavailable is returned by every operation when no API key is configured.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrRateLimited marks a provider rate-limit or quota response.
	ErrRateLimited = errors.New("rate limited by ai provider")
	// ErrKeysExhausted is returned when every configured key was rate limited.
	ErrKeysExhausted = errors.New("all api keys exhausted")
	// ErrModelNotFound marks a request for a model the provider does not serve.
	ErrModelNotFound = errors.New("model not found")
	// ErrRequestTimeout marks a generate call that exceeded its deadline.
	ErrRequestTimeout = errors.New("ai request timed out")
	// ErrProcessingTimeout is returned when an uploaded file never became ready.
	ErrProcessingTimeout = errors.New("remote file processing timed out")
	// ErrProcessingFailed is returned when the provider reports a failed upload.
	ErrProcessingFailed = errors.New("remote file processing failed")
	// ErrUnsupported marks media the selected provider cannot handle.
	ErrUnsupported = errors.New("unsupported media for provider")
	// ErrEmptyResponse is returned when the provider produced no text.
	ErrEmptyResponse = errors.New("empty response from ai provider")
	// ErrFileTooLarge marks media above what the provider accepts.
	ErrFileTooLarge = errors.New("file too large for ai provider")
)

// TooLargeError reports media rejected before it was sent to the provider.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds %d", ErrFileTooLarge, e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error { return ErrFileTooLarge }

// ExhaustedError carries the retry-after hint of the last rate-limit response.
type ExhaustedError struct {
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

func (e *ExhaustedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s after %d attempts (retry after %s): %v", ErrKeysExhausted, e.Attempts, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrKeysExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrKeysExhausted, e.Err}
}

// RetryAfter extracts the retry-after hint from an exhausted-keys error.
func RetryAfter(err error) (time.Duration, bool) {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) && exhausted.RetryAfter > 0 {
		return exhausted.RetryAfter, true
	}
	return 0, false
}

var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|m)\b`),
	regexp.MustCompile(`(?i)try again in ((?:[0-9]+(?:\.[0-9]+)?(?:ms|h|m|s))+)`),
	regexp.MustCompile(`(?i)"?retryDelay"?\s*[:=]\s*"?([0-9]+(?:\.[0-9]+)?)(s)"?`),
}

// parseRetryAfter looks for a provider-suggested wait in an error message.
func parseRetryAfter(msg string) time.Duration {
	for _, re := range retryAfterPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		raw := m[1]
		if len(m) > 2 {
			raw += strings.ToLower(m[2])
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d.Round(time.Second)
		}
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second)).Round(time.Second)
		}
	}
	return 0
}

// retryHint returns the provider-suggested wait carried by err, if any.
func retryHint(err error) time.Duration {
	if err == nil {
		return 0
	}
	_, msg := statusOf(err)
	if d := parseRetryAfter(msg); d > 0 {
		return d
	}
	return parseRetryAfter(err.Error())
}

// classify maps provider SDK errors onto the package sentinels so callers can
// use errors.Is regardless of provider.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrModelNotFound) {
		return err
	}

	status, msg := statusOf(err)
	lower := strings.ToLower(msg)

	switch {
	case status == http.StatusTooManyRequests,
		strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "rate_limit"),
		strings.Contains(lower, "quota"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case status == http.StatusNotFound && strings.Contains(lower, "model"),
		strings.Contains(lower, "model_not_found"),
		strings.Contains(lower, "model not found"),
		strings.Contains(lower, "does not exist") && strings.Contains(lower, "model"):
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	return err
}

func statusOf(err error) (int, string) {
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code, fmt.Sprintf("%s %s %v", gErr.Status, gErr.Message, gErr.Details)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil {
		return gErrPtr.Code, fmt.Sprintf("%s %s %v", gErrPtr.Status, gErrPtr.Message, gErrPtr.Details)
	}
	var oErr *openai.APIError
	if errors.As(err, &oErr) {
		code := ""
		if s, ok := oErr.Code.(string); ok {
			code = s
		}
		return oErr.HTTPStatusCode, code + " " + oErr.Type + " " + oErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, string(reqErr.Body) + " " + reqErr.Error()
	}
	return 0, err.Error()
}
