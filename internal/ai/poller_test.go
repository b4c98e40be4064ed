package ai_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/ai"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedStates struct {
	mu     sync.Mutex
	states []ai.RemoteState
	calls  int
}

func (s *scriptedStates) check(_ context.Context, _ string) (ai.RemoteState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[min(s.calls, len(s.states)-1)]
	s.calls++
	return st, nil
}

func (s *scriptedStates) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type progressLog struct {
	mu      sync.Mutex
	percent []int
	err     error
}

func (p *progressLog) report(_ context.Context, percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = append(p.percent, percent)
	return p.err
}

func (p *progressLog) values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.percent...)
}

func runPoller(t *testing.T, clock *clockwork.FakeClock, states *scriptedStates, progress *progressLog, cfg ai.PollConfig) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- ai.WaitForRemoteProcessing(context.Background(), "files/abc", states.check, progress.report, cfg, clock, discardLogger())
	}()
	return done
}

// advanceUntilDone moves the fake clock one interval at a time until the
// poller returns.
func advanceUntilDone(t *testing.T, clock *clockwork.FakeClock, done <-chan error, interval time.Duration) error {
	t.Helper()
	for {
		waiting := make(chan error, 1)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		go func() { waiting <- clock.BlockUntilContext(ctx, 1) }()

		select {
		case err := <-done:
			cancel()
			return err
		case err := <-waiting:
			cancel()
			require.NoError(t, err, "poller neither finished nor waited on the clock")
			clock.Advance(interval)
		}
	}
}

func TestWaitForRemoteProcessing_BecomesActive(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	states := &scriptedStates{states: []ai.RemoteState{ai.StatePending, ai.StatePending, ai.StateActive}}
	progress := &progressLog{err: errors.New("message not modified")}
	cfg := ai.PollConfig{Interval: 5 * time.Second, Timeout: 300 * time.Second}

	err := advanceUntilDone(t, clock, runPoller(t, clock, states, progress, cfg), cfg.Interval)

	require.NoError(t, err)
	assert.Equal(t, 3, states.count())
	assert.Equal(t, []int{0, 1}, progress.values())
}

func TestWaitForRemoteProcessing_FailedStopsImmediately(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	states := &scriptedStates{states: []ai.RemoteState{ai.StateFailed}}
	progress := &progressLog{}
	cfg := ai.PollConfig{Interval: 5 * time.Second, Timeout: 300 * time.Second}

	err := advanceUntilDone(t, clock, runPoller(t, clock, states, progress, cfg), cfg.Interval)

	require.ErrorIs(t, err, ai.ErrProcessingFailed)
	assert.Equal(t, 1, states.count())
	assert.Empty(t, progress.values())
}

func TestWaitForRemoteProcessing_TimesOut(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	start := clock.Now()
	states := &scriptedStates{states: []ai.RemoteState{ai.StatePending}}
	progress := &progressLog{}
	cfg := ai.PollConfig{Interval: 5 * time.Second, Timeout: 12 * time.Second}

	err := advanceUntilDone(t, clock, runPoller(t, clock, states, progress, cfg), cfg.Interval)

	require.ErrorIs(t, err, ai.ErrProcessingTimeout)
	assert.GreaterOrEqual(t, clock.Since(start), cfg.Timeout)
	// Polls at 0s, 5s and 10s keep waiting; the poll at 15s gives up.
	assert.Equal(t, 4, states.count())
	for _, p := range progress.values() {
		assert.LessOrEqual(t, p, 99)
	}
}

func TestWaitForRemoteProcessing_ContextCancelled(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	states := &scriptedStates{states: []ai.RemoteState{ai.StatePending}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ai.WaitForRemoteProcessing(ctx, "files/abc", states.check, nil, ai.PollConfig{}, clock, discardLogger())
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWaitForRemoteProcessing_CheckError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := ai.WaitForRemoteProcessing(context.Background(), "files/abc",
		func(context.Context, string) (ai.RemoteState, error) { return ai.StatePending, boom },
		nil, ai.PollConfig{}, clockwork.NewFakeClock(), discardLogger())

	assert.ErrorIs(t, err, boom)
}
