package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/logger"
)

// NewResetHandler returns a handler for the /reset command, which clears the
// sender's conversation history.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := logger.FromContext(ctx, h.deps.Logger).With("handler", "reset")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	h.deps.Sessions.Reset(userID)
	log.InfoContext(ctx, "Conversation history cleared", "chat_id", chatID, "user_id", userID)

	sendText(ctx, b, log, chatID, h.deps.Config.Messages.HistoryReset)
}
