package broadcast_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/broadcast"
	"github.com/tutorbot/tutorbot/internal/config"
)

type fakeStore struct {
	mu          sync.Mutex
	active      []int64
	deactivated []int64
}

func (s *fakeStore) ListActiveUserIDs(context.Context) ([]int64, error) {
	return s.active, nil
}

func (s *fakeStore) SetUserActive(_ context.Context, userID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !active {
		s.deactivated = append(s.deactivated, userID)
	}
	return nil
}

type fakeSender struct {
	failures map[int64]error
	copied   []int64
	texts    []string
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	id := params.ChatID.(int64)
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	f.texts = append(f.texts, params.Text)
	return &models.Message{ID: 1}, nil
}

func (f *fakeSender) CopyMessage(_ context.Context, params *bot.CopyMessageParams) (*models.MessageID, error) {
	id := params.ChatID.(int64)
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	f.copied = append(f.copied, id)
	return &models.MessageID{ID: 1}, nil
}

func newBroadcaster(store *fakeStore) *broadcast.Broadcaster {
	return broadcast.New(store, config.BroadcastConfig{RatePerSecond: 1000, Burst: 10}, nil)
}

func TestSendCopiesAndDeactivates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{active: []int64{1, 2, 3, 4}}
	sender := &fakeSender{failures: map[int64]error{
		2: fmt.Errorf("%w, Forbidden: bot was blocked by the user", bot.ErrorForbidden),
		3: errors.New("Bad Request: user is deactivated"),
		4: errors.New("connection reset"),
	}}

	b := newBroadcaster(store)
	recipients, err := b.Recipients(context.Background())
	require.NoError(t, err)

	res, err := b.Send(context.Background(), sender, recipients, broadcast.Message{FromChatID: 99, MessageID: 5})
	require.NoError(t, err)

	assert.Equal(t, broadcast.Result{Total: 4, Delivered: 1, Failed: 1, Deactivated: 2}, res)
	assert.Equal(t, []int64{1}, sender.copied)
	assert.ElementsMatch(t, []int64{2, 3}, store.deactivated)
}

func TestSendText(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	b := newBroadcaster(&fakeStore{})

	res, err := b.Send(context.Background(), sender, []int64{1, 2}, broadcast.Message{Text: "exam tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []string{"exam tomorrow", "exam tomorrow"}, sender.texts)
}

func TestSendRequiresContent(t *testing.T) {
	t.Parallel()

	_, err := newBroadcaster(&fakeStore{}).Send(context.Background(), &fakeSender{}, []int64{1}, broadcast.Message{})
	assert.Error(t, err)
}

func TestSendStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newBroadcaster(&fakeStore{}).Send(ctx, &fakeSender{}, []int64{1, 2}, broadcast.Message{Text: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Delivered)
}

func TestIsUnreachable(t *testing.T) {
	t.Parallel()

	assert.True(t, broadcast.IsUnreachable(fmt.Errorf("%w, Forbidden", bot.ErrorForbidden)))
	assert.True(t, broadcast.IsUnreachable(errors.New("Bad Request: chat not found")))
	assert.False(t, broadcast.IsUnreachable(errors.New("timeout")))
	assert.False(t, broadcast.IsUnreachable(nil))
}
