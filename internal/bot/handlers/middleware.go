// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
	"github.com/tutorbot/tutorbot/internal/metrics"
)

const userUpsertTimeout = 5 * time.Second

// AdminOnly creates a middleware that checks if the message sender is the configured admin user.
// If not, it sends a "Not Authorized" message and stops processing by returning early.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !deps.Config.Telegram.IsAdmin(userID) {
				chatID := update.Message.Chat.ID
				log := logger.FromContext(ctx, deps.Logger).With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.Unauthorized,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}

			next(ctx, bot, update)
		}
	}
}

// TrackUser upserts the sender of every inbound message so the registry
// knows who can receive broadcasts. Failures are logged and never block the update.
func TrackUser(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message != nil && update.Message.From != nil && !update.Message.From.IsBot {
				from := update.Message.From
				dbCtx, cancel := context.WithTimeout(ctx, userUpsertTimeout)
				err := deps.Store.UpsertUser(dbCtx, &database.User{
					ID:        from.ID,
					FirstName: from.FirstName,
					Username:  from.Username,
				})
				cancel()
				if err != nil {
					logger.FromContext(ctx, deps.Logger).WarnContext(ctx, "Failed to record user", "user_id", from.ID, "error", err)
				}
			}
			next(ctx, bot, update)
		}
	}
}

// RateLimit drops messages from users that exceed their request budget and
// tells them to slow down.
func RateLimit(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil || deps.Limiter.Allow(update.Message.From.ID) {
				next(ctx, bot, update)
				return
			}

			metrics.RateLimitExceeded.Inc()
			chatID := update.Message.Chat.ID
			log := logger.FromContext(ctx, deps.Logger).With("middleware", "RateLimit")
			log.WarnContext(ctx, "Rate limit exceeded", "user_id", update.Message.From.ID, "chat_id", chatID)

			if _, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: chatID,
				Text:   deps.Config.Messages.RateLimited,
			}); err != nil {
				log.ErrorContext(ctx, "Failed to send rate limit message", "error", err, "chat_id", chatID)
			}
		}
	}
}

// trackCommand counts the command and records it in the message log before
// any other command middleware runs, so rejected admin commands are logged too.
func trackCommand(deps HandlerDeps, name string) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			metrics.CommandsExecuted.WithLabelValues(name).Inc()
			if msg := update.Message; msg != nil && msg.From != nil {
				SaveLogWithRetry(ctx, deps, msg.From.ID, database.LogCommand, msg.Text)
			}
			next(ctx, bot, update)
		}
	}
}
