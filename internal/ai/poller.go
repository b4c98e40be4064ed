package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// RemoteState is the processing state of an uploaded asset.
type RemoteState int

const (
	StatePending RemoteState = iota
	StateActive
	StateFailed
)

func (s RemoteState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

// StateFunc reports the current processing state of the asset named handle.
type StateFunc func(ctx context.Context, handle string) (RemoteState, error)

// ProgressFunc receives an estimated completion percentage between 0 and 99.
type ProgressFunc func(ctx context.Context, percent int) error

// PollConfig controls how often and how long WaitForRemoteProcessing polls.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 300 * time.Second
)

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPollTimeout
	}
	return c
}

// WaitForRemoteProcessing polls check until the asset becomes active. A failed
// state returns ErrProcessingFailed immediately. ErrProcessingTimeout is
// returned once cfg.Timeout has elapsed without a terminal state. Progress
// callback errors are logged and ignored.
func WaitForRemoteProcessing(
	ctx context.Context,
	handle string,
	check StateFunc,
	progress ProgressFunc,
	cfg PollConfig,
	clock clockwork.Clock,
	logger *slog.Logger,
) error {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "poller", "handle", handle)

	start := clock.Now()
	for polls := 1; ; polls++ {
		state, err := check(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to check state of %s: %w", handle, err)
		}

		switch state {
		case StateActive:
			log.DebugContext(ctx, "Remote file is ready", "polls", polls, "elapsed", clock.Since(start))
			return nil
		case StateFailed:
			log.WarnContext(ctx, "Remote file processing failed", "polls", polls)
			return fmt.Errorf("%w: %s", ErrProcessingFailed, handle)
		}

		elapsed := clock.Since(start)
		if elapsed >= cfg.Timeout {
			log.WarnContext(ctx, "Remote file processing timed out", "polls", polls, "elapsed", elapsed)
			return fmt.Errorf("%w: %s still processing after %s", ErrProcessingTimeout, handle, elapsed)
		}

		if progress != nil {
			percent := min(99, int(elapsed*100/cfg.Timeout))
			if err := progress(ctx, percent); err != nil {
				log.DebugContext(ctx, "Progress update failed", "percent", percent, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(cfg.Interval):
		}
	}
}
