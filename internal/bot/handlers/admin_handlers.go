package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/broadcast"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
)

const adminQueryTimeout = 30 * time.Second

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := logger.FromContext(ctx, h.deps.Logger).With("handler", "stats")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	dbCtx, cancel := context.WithTimeout(ctx, adminQueryTimeout)
	defer cancel()

	stats, err := h.deps.Store.GetStats(dbCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load stats", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, h.deps.Config.Messages.Stats, stats.TotalUsers, stats.ActiveUsers, stats.TotalLogs)

	types := make([]string, 0, len(stats.LogsByType))
	for t := range stats.LogsByType {
		types = append(types, string(t))
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(&sb, "\n  %s: %d", t, stats.LogsByType[database.LogType(t)])
	}
	fmt.Fprintf(&sb, "\nSessions: %d\nAI provider: %s", h.deps.Sessions.Len(), h.deps.AI.Provider())

	log.InfoContext(ctx, "Sending stats", "chat_id", chatID, "users", stats.TotalUsers)
	sendText(ctx, b, log, chatID, sb.String())
}

// NewBroadcastHandler returns a handler for the admin /broadcast command. The
// message replied to is copied to every active user; without a reply the text
// after the command is sent instead.
func NewBroadcastHandler(deps HandlerDeps) bot.HandlerFunc {
	return broadcastHandler{deps}.Handle
}

type broadcastHandler struct {
	deps HandlerDeps
}

func (h broadcastHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := logger.FromContext(ctx, h.deps.Logger).With("handler", "broadcast")
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	out, ok := broadcastMessage(msg)
	if !ok {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.BroadcastUsage)
		return
	}

	recipients, err := h.deps.Broadcaster.Recipients(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load broadcast recipients", "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Starting broadcast", "chat_id", chatID, "recipients", len(recipients), "copy", out.Text == "")
	sendText(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.BroadcastStarted, len(recipients)))

	// Delivery outlives the update: report back when it is done.
	bgCtx, cancel := h.deps.detach(ctx)
	go func() {
		defer cancel()
		res, err := h.deps.Broadcaster.Send(bgCtx, b, recipients, out)
		if bgCtx.Err() != nil {
			log.WarnContext(bgCtx, "Broadcast interrupted by shutdown", "delivered", res.Delivered, "remaining", len(recipients)-res.Delivered-res.Failed-res.Deactivated)
			return
		}
		if err != nil {
			log.ErrorContext(bgCtx, "Broadcast stopped early", "error", err)
		}
		sendText(bgCtx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.BroadcastDone, res.Delivered, res.Failed, res.Deactivated))
	}()
}

// broadcastMessage extracts what /broadcast should send.
func broadcastMessage(msg *models.Message) (broadcast.Message, bool) {
	if reply := msg.ReplyToMessage; reply != nil {
		return broadcast.Message{FromChatID: msg.Chat.ID, MessageID: reply.ID}, true
	}

	body := strings.TrimSpace(msg.Text)
	if i := strings.IndexAny(body, " \n"); i >= 0 {
		body = strings.TrimSpace(body[i+1:])
	} else {
		body = ""
	}
	if body == "" {
		return broadcast.Message{}, false
	}
	return broadcast.Message{Text: body}, true
}

// NewClearLogsHandler returns a handler for the admin /clear_logs command.
func NewClearLogsHandler(deps HandlerDeps) bot.HandlerFunc {
	return clearLogsHandler{deps}.Handle
}

type clearLogsHandler struct {
	deps HandlerDeps
}

func (h clearLogsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := logger.FromContext(ctx, h.deps.Logger).With("handler", "clear_logs")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested message log deletion", "chat_id", chatID, "user_id", update.Message.From.ID)

	dbCtx, cancel := context.WithTimeout(ctx, adminQueryTimeout)
	defer cancel()

	deleted, err := h.deps.Store.DeleteAllMessageLogs(dbCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to delete message logs", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	sendText(ctx, b, log, chatID, fmt.Sprintf(h.deps.Config.Messages.LogsCleared, deleted))
}
