// Package main contains the entrypoint for the tutor bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/tutorbot/tutorbot/internal/ai"
	"github.com/tutorbot/tutorbot/internal/bot"
	"github.com/tutorbot/tutorbot/internal/bot/handlers"
	"github.com/tutorbot/tutorbot/internal/bot/tasks"
	"github.com/tutorbot/tutorbot/internal/broadcast"
	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
	"github.com/tutorbot/tutorbot/internal/server"
	"github.com/tutorbot/tutorbot/internal/session"
	"github.com/tutorbot/tutorbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, cfg.Database.MaxLogContent, log)

	aiClient, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	sessions := session.NewStore(cfg.Session.MaxTurns, cfg.Session.MaxUsers, cfg.Session.TTL)

	hDeps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Store:       store,
		AI:          aiClient,
		Sessions:    sessions,
		Broadcaster: broadcast.New(store, cfg.Broadcast, log),
		Limiter:     handlers.NewUserLimiter(cfg.RateLimit),
		HTTPClient:  &http.Client{Timeout: 2 * time.Minute},
		Lifetime:    ctx,
	}
	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Sessions: sessions,
		Config:   cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.TrackUser(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	telegram.SetCommands(ctx, tg, log)

	webhook, err := telegram.ConfigureDelivery(ctx, tg, cfg.Telegram, log)
	if err != nil {
		log.Error("Failed to configure update delivery", "error", err)
		return 1
	}
	var webhookHandler http.Handler
	if webhook {
		webhookHandler = tg.WebhookHandler()
	}
	srv := server.New(cfg.HTTP, store, webhookHandler, log)

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, webhook, srv, sched)

	log.Info("Starting bot...", "ai_provider", aiClient.Provider())
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
