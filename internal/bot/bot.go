// Package bot runs the tutor bot: the Telegram update loop, the HTTP server
// and the housekeeping scheduler, under one lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/tutorbot/tutorbot/internal/server"
)

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	tgBot     *tgbot.Bot
	webhook   bool
	server    *server.Server
	scheduler *Scheduler
}

// NewBot wires the running components. When webhook is true updates arrive
// through the server's /webhook route, otherwise the bot long-polls.
func NewBot(logger *slog.Logger, tgBot *tgbot.Bot, webhook bool, srv *server.Server, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		tgBot:     tgBot,
		webhook:   webhook,
		server:    srv,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if b.webhook {
			b.logger.Info("Starting Telegram webhook processor...")
			b.tgBot.StartWebhook(gCtx)
		} else {
			b.logger.Info("Starting Telegram long polling...")
			b.tgBot.Start(gCtx)
		}
		b.logger.Info("Telegram update loop stopped.")

		if gCtx.Err() == nil {
			return errors.New("telegram update loop stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		return b.server.Run(gCtx)
	})

	g.Go(func() error {
		if err := b.scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
