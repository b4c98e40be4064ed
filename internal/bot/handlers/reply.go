package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/ai"
	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
	"github.com/tutorbot/tutorbot/internal/session"
	"github.com/tutorbot/tutorbot/internal/text"
)

const (
	sendMessageTimeout = 10 * time.Second
	dbSaveTimeout      = 5 * time.Second
	dbSaveAttempts     = 3
)

// sendText sends a single message and logs failures.
func sendText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, msg string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: msg}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// SendChunkedReply splits reply into Telegram-sized segments and sends them in
// order. The first segment replies to replyTo when it is set. Sending stops at
// the first failure so segments never arrive out of order.
func SendChunkedReply(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, replyTo int, reply string) error {
	log := logger.FromContext(ctx, deps.Logger)

	segments := text.SplitIntoMessageSegments(reply, text.MaxMessageLength)
	if len(segments) == 0 {
		log.WarnContext(ctx, "Empty reply, using fallback", "chat_id", chatID)
		segments = []string{deps.Config.Messages.EmptyReply}
	}

	for i, segment := range segments {
		params := &bot.SendMessageParams{ChatID: chatID, Text: segment}
		if i == 0 && replyTo > 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := b.SendMessage(sendCtx, params)
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "Failed to send reply segment", "error", err, "chat_id", chatID, "segment", i+1, "segments", len(segments))
			return fmt.Errorf("failed to send segment %d/%d: %w", i+1, len(segments), err)
		}
	}

	log.InfoContext(ctx, "Sent reply", "chat_id", chatID, "segments", len(segments))
	return nil
}

// errorReply maps an AI error onto the user-facing message for it.
func errorReply(msgs config.MessagesConfig, err error, vision bool) string {
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		return msgs.AIUnavailable
	case errors.Is(err, ai.ErrKeysExhausted):
		if wait, ok := ai.RetryAfter(err); ok {
			return fmt.Sprintf(msgs.KeysExhaustedWait, wait)
		}
		return msgs.KeysExhausted
	case errors.Is(err, ai.ErrModelNotFound):
		if vision {
			return msgs.VisionUnavailable
		}
		return msgs.AIError
	case errors.Is(err, ai.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return msgs.Timeout
	case errors.Is(err, ai.ErrProcessingTimeout):
		return msgs.ProcessingTimeout
	case errors.Is(err, ai.ErrProcessingFailed):
		return msgs.ProcessingFailed
	case errors.Is(err, ai.ErrFileTooLarge):
		var tooLarge *ai.TooLargeError
		if errors.As(err, &tooLarge) {
			return fmt.Sprintf(msgs.FileTooLarge, max(1, tooLarge.Limit>>20))
		}
		return fmt.Sprintf(msgs.FileTooLarge, 0)
	case errors.Is(err, ai.ErrUnsupported):
		return msgs.UnsupportedType
	case errors.Is(err, ai.ErrEmptyResponse):
		return msgs.EmptyReply
	}
	return msgs.AIError
}

// replyWithError answers a failed AI request. A keys-exhausted answer is
// recorded in the history only when configured to.
func replyWithError(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID, userID int64, prompt string, err error, vision bool) {
	log := logger.FromContext(ctx, deps.Logger)
	log.ErrorContext(ctx, "AI request failed", "error", err, "chat_id", chatID, "provider", deps.AI.Provider())

	msg := errorReply(deps.Config.Messages, err, vision)
	sendText(ctx, b, log, chatID, msg)

	if deps.Config.Session.RecordFailedReplies && errors.Is(err, ai.ErrKeysExhausted) && prompt != "" {
		deps.Sessions.Append(userID,
			session.Turn{Role: session.RoleUser, Content: prompt},
			session.Turn{Role: session.RoleModel, Content: msg},
		)
	}
}

// sendTyping shows the "typing" indicator; failures are irrelevant.
func sendTyping(ctx context.Context, b *bot.Bot, chatID int64) {
	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
}

// aiBudget bounds a whole handler run: remote processing plus a generate call
// with its retries.
func aiBudget(cfg config.AIConfig, withUpload bool) time.Duration {
	budget := cfg.RequestTimeout * time.Duration(cfg.MaxRetries+1)
	if withUpload {
		budget += cfg.PollTimeout + cfg.RequestTimeout
	}
	return budget + 30*time.Second
}

// statusMessage is the temporary "processing" notice shown while a file is
// uploaded and analyzed.
type statusMessage struct {
	b           *bot.Bot
	chatID      int64
	id          int
	lastPercent int
	format      string
	log         *slog.Logger
}

func sendStatus(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, replyTo int) *statusMessage {
	s := &statusMessage{
		b:           b,
		chatID:      chatID,
		lastPercent: -1,
		format:      deps.Config.Messages.ProcessingPercent,
		log:         logger.FromContext(ctx, deps.Logger),
	}

	params := &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.Messages.Processing}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}
	sent, err := b.SendMessage(ctx, params)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to send status message", "error", err, "chat_id", chatID)
		return s
	}
	s.id = sent.ID
	return s
}

// Progress edits the status message; it satisfies ai.ProgressFunc.
func (s *statusMessage) Progress(ctx context.Context, percent int) error {
	if s.id == 0 || percent == s.lastPercent {
		return nil
	}
	s.lastPercent = percent
	_, err := s.b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    s.chatID,
		MessageID: s.id,
		Text:      fmt.Sprintf(s.format, percent),
	})
	return err
}

// Delete removes the status message, even after ctx was cancelled.
func (s *statusMessage) Delete(ctx context.Context) {
	if s.id == 0 {
		return
	}
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendMessageTimeout)
	defer cancel()
	if _, err := s.b.DeleteMessage(delCtx, &bot.DeleteMessageParams{ChatID: s.chatID, MessageID: s.id}); err != nil {
		s.log.WarnContext(ctx, "Failed to delete status message", "error", err, "chat_id", s.chatID)
	}
}

// SaveLogWithRetry stores a message log entry, retrying transient database
// failures. Persistence is best effort and never blocks the reply.
func SaveLogWithRetry(ctx context.Context, deps HandlerDeps, userID int64, logType database.LogType, content string) {
	log := logger.FromContext(ctx, deps.Logger)
	entry := &database.MessageLog{UserID: userID, Type: logType, Content: content}

	err := retry.Do(
		func() error {
			dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
			defer cancel()
			return deps.Store.SaveMessageLog(dbCtx, entry)
		},
		retry.Context(ctx),
		retry.Attempts(dbSaveAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WarnContext(ctx, "Failed to save message log, retrying", "error", err, "user_id", userID, "attempt", n+1)
		}),
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save message log", "error", err, "user_id", userID, "type", logType)
		return
	}
	log.DebugContext(ctx, "Message log saved", "log_id", entry.ID, "user_id", userID, "type", logType)
}
