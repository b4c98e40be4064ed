// Package broadcast delivers an admin message to every active user at a
// steady pace, deactivating users that can no longer be reached.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/metrics"
)

// Sender is the subset of the Telegram API used for delivery. *bot.Bot
// satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	CopyMessage(ctx context.Context, params *bot.CopyMessageParams) (*models.MessageID, error)
}

// UserStore lists recipients and records unreachable ones.
type UserStore interface {
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

// Message is what gets broadcast: either a copy of an existing message or
// plain text.
type Message struct {
	FromChatID int64
	MessageID  int
	Text       string
}

// Result counts delivery outcomes.
type Result struct {
	Total       int
	Delivered   int
	Failed      int
	Deactivated int
}

// Broadcaster paces deliveries with a token bucket.
type Broadcaster struct {
	store   UserStore
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Broadcaster sending at most cfg.RatePerSecond messages per second.
func New(store UserStore, cfg config.BroadcastConfig, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Broadcaster{
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		log:     logger.With("component", "broadcast"),
	}
}

// Recipients returns the users a broadcast would currently reach.
func (b *Broadcaster) Recipients(ctx context.Context) ([]int64, error) {
	ids, err := b.store.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast recipients: %w", err)
	}
	return ids, nil
}

// Send delivers msg to every recipient in order. It stops early only when ctx
// is cancelled; per-user failures are counted and logged.
func (b *Broadcaster) Send(ctx context.Context, sender Sender, recipients []int64, msg Message) (Result, error) {
	if msg.Text == "" && (msg.FromChatID == 0 || msg.MessageID == 0) {
		return Result{}, errors.New("broadcast message has neither text nor a source message")
	}

	res := Result{Total: len(recipients)}
	b.log.InfoContext(ctx, "Starting broadcast", "recipients", len(recipients))

	for _, userID := range recipients {
		if err := b.limiter.Wait(ctx); err != nil {
			b.log.WarnContext(ctx, "Broadcast interrupted", "error", err, "delivered", res.Delivered)
			return res, fmt.Errorf("broadcast interrupted: %w", err)
		}

		err := b.deliver(ctx, sender, userID, msg)
		switch {
		case err == nil:
			res.Delivered++
			metrics.BroadcastDeliveries.WithLabelValues("delivered").Inc()

		case IsUnreachable(err):
			res.Deactivated++
			metrics.BroadcastDeliveries.WithLabelValues("deactivated").Inc()
			b.log.InfoContext(ctx, "Deactivating unreachable user", "user_id", userID, "error", err)
			if dbErr := b.store.SetUserActive(ctx, userID, false); dbErr != nil {
				b.log.ErrorContext(ctx, "Failed to deactivate user", "user_id", userID, "error", dbErr)
			}

		default:
			res.Failed++
			metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
			b.log.WarnContext(ctx, "Broadcast delivery failed", "user_id", userID, "error", err)
		}
	}

	b.log.InfoContext(ctx, "Broadcast finished",
		"total", res.Total, "delivered", res.Delivered, "failed", res.Failed, "deactivated", res.Deactivated)
	return res, nil
}

func (b *Broadcaster) deliver(ctx context.Context, sender Sender, userID int64, msg Message) error {
	if msg.Text != "" {
		_, err := sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: userID, Text: msg.Text})
		return err
	}
	_, err := sender.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     userID,
		FromChatID: msg.FromChatID,
		MessageID:  msg.MessageID,
	})
	return err
}

// IsUnreachable reports whether a delivery error means the user blocked the
// bot, deleted the account or never started a chat.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bot.ErrorForbidden) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "blocked") ||
		strings.Contains(msg, "deactivated") ||
		strings.Contains(msg, "chat not found")
}
