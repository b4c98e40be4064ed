package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tutorbot/tutorbot/internal/metrics"
)

// KeyFunc performs one provider call with the key at the given slot.
type KeyFunc func(ctx context.Context, slot int, key string) error

// KeyRing rotates through a fixed list of API keys. The current index is shared
// by all requests and only advances when the key at that index is rate limited.
type KeyRing struct {
	provider string
	keys     []string
	idx      atomic.Int64
	logger   *slog.Logger
}

// NewKeyRing builds a ring from keys, dropping blanks and duplicates.
func NewKeyRing(provider string, keys []string, logger *slog.Logger) *KeyRing {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(keys))
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, k)
	}
	return &KeyRing{
		provider: provider,
		keys:     clean,
		logger:   logger.With("component", "key_ring", "provider", provider),
	}
}

// Len returns the number of usable keys.
func (r *KeyRing) Len() int { return len(r.keys) }

// Keys returns a copy of the configured keys in rotation order.
func (r *KeyRing) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Current returns the index of the key the next request will use.
func (r *KeyRing) Current() int {
	if len(r.keys) == 0 {
		return 0
	}
	return int(r.idx.Load() % int64(len(r.keys)))
}

// advance moves the index past from. If another request already moved it, the
// index is left alone so concurrent failures on the same key advance it once.
func (r *KeyRing) advance(from int) {
	next := int64((from + 1) % len(r.keys))
	if r.idx.CompareAndSwap(int64(from), next) {
		metrics.KeyRotations.WithLabelValues(r.provider).Inc()
	}
}

// Do runs fn with the current key. Rate-limit failures rotate to the next key
// and retry, up to one attempt per key. Any other error is returned at once.
// When every key is rate limited the result wraps ErrKeysExhausted in an
// *ExhaustedError and the index is back where it started.
func (r *KeyRing) Do(ctx context.Context, fn KeyFunc) error {
	if len(r.keys) == 0 {
		return ErrUnavailable
	}

	var (
		lastErr    error
		retryAfter time.Duration
	)
	for attempt := 0; attempt < len(r.keys); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		slot := r.Current()
		err := classify(fn(ctx, slot, r.keys[slot]))
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return err
		}

		lastErr = err
		if d := retryHint(err); d > 0 {
			retryAfter = d
		}
		r.logger.WarnContext(ctx, "API key rate limited, rotating", "slot", slot, "attempt", attempt+1, "keys", len(r.keys))
		r.advance(slot)
	}

	metrics.KeysExhausted.WithLabelValues(r.provider).Inc()
	r.logger.ErrorContext(ctx, "All API keys rate limited", "keys", len(r.keys), "retry_after", retryAfter)
	return &ExhaustedError{
		Attempts:   len(r.keys),
		RetryAfter: retryAfter,
		Err:        fmt.Errorf("%s: %w", r.provider, lastErr),
	}
}
