// Package logger provides structured logging for tutorbot using log/slog.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/xid"

	"github.com/tutorbot/tutorbot/internal/metrics"
)

type ctxKey struct{}

// NewLogger creates a slog Logger with the given level. If jsonOutput is true
// records are written as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the request-scoped logger stored by Middleware, or
// fallback when there is none.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return log
	}
	return fallback
}

// UpdateType names the kind of content an update carries.
func UpdateType(update *models.Update) string {
	switch {
	case update.Message != nil:
		msg := update.Message
		switch {
		case len(msg.Photo) > 0:
			return "photo"
		case msg.Document != nil:
			return "document"
		case msg.Voice != nil:
			return "voice"
		case msg.Audio != nil:
			return "audio"
		case msg.Video != nil:
			return "video"
		case msg.Text != "":
			return "text"
		}
		return "message"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.MyChatMember != nil:
		return "my_chat_member"
	}
	return "other"
}

// Middleware logs every update with a request id and stores the request logger
// in the handler context.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()
			updateType := UpdateType(update)
			metrics.UpdatesReceived.WithLabelValues(updateType).Inc()

			logEntry := log.With(
				"req_id", xid.New().String(),
				"update_id", update.ID,
				"update_type", updateType,
			)

			if msg := update.Message; msg != nil {
				logEntry = logEntry.With("message_id", msg.ID, "chat_id", msg.Chat.ID)
				if msg.From != nil {
					logEntry = logEntry.With("user_id", msg.From.ID)
				}
				if msg.Text != "" {
					logEntry = logEntry.With("text_preview", truncateString(msg.Text, 50))
				}
			} else if update.CallbackQuery != nil {
				logEntry = logEntry.With("user_id", update.CallbackQuery.From.ID, "data", update.CallbackQuery.Data)
			}

			logEntry.InfoContext(ctx, "Processing update")

			next(WithContext(ctx, logEntry), b, update)

			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
