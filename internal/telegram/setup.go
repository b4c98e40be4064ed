// Package telegram constructs the Telegram bot client and wires handlers,
// bot commands and the update delivery mode.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/bot/handlers"
	"github.com/tutorbot/tutorbot/internal/config"
)

// commandDescriptions is the command menu shown to every user.
var commandDescriptions = map[string]string{
	"start": "Start the bot",
	"help":  "How to use the bot",
	"reset": "Clear the conversation history",
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(cfg config.TelegramConfig, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "webhook", cfg.WebhookURL != "")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// The first middleware in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command handlers with their middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]handlers.RegisteredHandler) error {
	if b == nil {
		return errors.New("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	for name, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "command", name)
			continue
		}
		final := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, final)
		log.Debug("Registered handler", "command", name, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registeredHandlers))
	return nil
}

// botCommands returns the public command menu, sorted by command.
func botCommands() []models.BotCommand {
	names := make([]string, 0, len(commandDescriptions))
	for name := range commandDescriptions {
		names = append(names, name)
	}
	slices.Sort(names)

	commands := make([]models.BotCommand, 0, len(names))
	for _, name := range names {
		commands = append(commands, models.BotCommand{Command: name, Description: commandDescriptions[name]})
	}
	return commands
}

// SetCommands publishes the command menu. Failure only affects the menu.
func SetCommands(ctx context.Context, b *bot.Bot, logger *slog.Logger) {
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: botCommands()}); err != nil {
		logger.WarnContext(ctx, "Failed to set bot commands", "error", err)
	}
}

// ConfigureDelivery points Telegram at the webhook when one is configured and
// removes any stale webhook otherwise, so long polling can receive updates.
// It reports whether updates arrive by webhook.
func ConfigureDelivery(ctx context.Context, b *bot.Bot, cfg config.TelegramConfig, logger *slog.Logger) (bool, error) {
	if cfg.WebhookURL == "" {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			return false, fmt.Errorf("failed to delete webhook: %w", err)
		}
		logger.InfoContext(ctx, "Using long polling for updates")
		return false, nil
	}

	_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.WebhookSecret,
	})
	if err != nil {
		return false, fmt.Errorf("failed to set webhook: %w", err)
	}
	logger.InfoContext(ctx, "Webhook registered", "url", cfg.WebhookURL)
	return true, nil
}
