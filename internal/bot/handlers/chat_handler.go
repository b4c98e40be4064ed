package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
	"github.com/tutorbot/tutorbot/internal/session"
)

// NewChatHandler returns a handler that answers plain text messages using the
// sender's conversation history.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := logger.FromContext(ctx, h.deps.Logger).With("handler", "chat")

	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update with nil message, empty text, or nil sender", "update_id", update.ID)
		return
	}

	userID := msg.From.ID
	log.InfoContext(ctx, "Handling text message", "chat_id", msg.Chat.ID, "user_id", userID, "length", len(msg.Text))
	SaveLogWithRetry(ctx, h.deps, userID, database.LogText, msg.Text)

	h.converse(logger.WithContext(ctx, log), b, msg, msg.Text)
}

// converse sends prompt with the user's history, records the exchange and
// replies in order-preserving segments.
func (h chatHandler) converse(ctx context.Context, b *bot.Bot, msg *models.Message, prompt string) {
	deps := h.deps
	log := logger.FromContext(ctx, deps.Logger)
	chatID := msg.Chat.ID
	userID := msg.From.ID

	sendTyping(ctx, b, chatID)

	aiCtx, cancel := context.WithTimeout(ctx, aiBudget(deps.Config.AI, false))
	defer cancel()

	history := deps.Sessions.History(userID)
	reply, err := deps.AI.GenerateReply(aiCtx, history, prompt)
	if err != nil {
		replyWithError(ctx, b, deps, chatID, userID, prompt, err, false)
		return
	}

	deps.Sessions.Append(userID,
		session.Turn{Role: session.RoleUser, Content: prompt},
		session.Turn{Role: session.RoleModel, Content: reply},
	)
	log.DebugContext(ctx, "Conversation updated", "user_id", userID, "history_turns", len(history)+2)

	if err := SendChunkedReply(ctx, b, deps, chatID, msg.ID, reply); err != nil {
		log.ErrorContext(ctx, "Reply was not fully delivered", "error", err, "chat_id", chatID)
	}
}
