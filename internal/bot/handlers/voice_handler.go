package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/logger"
)

// NewVoiceHandler returns a handler that transcribes voice notes and answers
// the transcript as if it had been typed.
func NewVoiceHandler(deps HandlerDeps) bot.HandlerFunc {
	return voiceHandler{deps}.Handle
}

type voiceHandler struct {
	deps HandlerDeps
}

func (h voiceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := logger.FromContext(ctx, deps.Logger).With("handler", "voice")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Voice == nil {
		return
	}
	ctx = logger.WithContext(ctx, log)
	chatID := msg.Chat.ID

	log.InfoContext(ctx, "Handling voice note", "chat_id", chatID, "user_id", msg.From.ID, "duration", msg.Voice.Duration)
	// The row is written on return so it can carry the transcript.
	entry := voiceLogEntry(msg.Voice.Duration, msg.Caption, "")
	defer func() { SaveLogWithRetry(ctx, deps, msg.From.ID, database.LogVoice, entry) }()

	maxSize := deps.Config.Upload.MaxFileSize
	if int64(msg.Voice.FileSize) > maxSize {
		sendText(ctx, b, log, chatID, fileTooLargeText(deps, maxSize))
		return
	}

	sendTyping(ctx, b, chatID)

	path, err := DownloadToTemp(ctx, b, deps.httpClient(), msg.Voice.FileID, deps.Config.Upload.TempDir, "voice-*.ogg", maxSize)
	if err != nil {
		reportDownloadError(ctx, b, deps, chatID, err)
		return
	}
	defer removeTemp(ctx, log, path)

	mimeType := msg.Voice.MimeType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiBudget(deps.Config.AI, true))
	defer cancel()

	transcript, err := deps.AI.Transcribe(aiCtx, path, mimeType)
	if err != nil {
		replyWithError(ctx, b, deps, chatID, msg.From.ID, "", err, false)
		return
	}
	if transcript == "" {
		log.InfoContext(ctx, "Voice note produced an empty transcript", "chat_id", chatID)
		sendText(ctx, b, log, chatID, deps.Config.Messages.EmptyTranscript)
		return
	}

	log.DebugContext(ctx, "Voice note transcribed", "chat_id", chatID, "length", len(transcript))
	entry = voiceLogEntry(msg.Voice.Duration, msg.Caption, transcript)
	chatHandler(h).converse(ctx, b, msg, transcript)
}

// voiceLogEntry renders a voice note for the message log, e.g.
// "[voice 12s] caption: transcript".
func voiceLogEntry(duration int, caption, transcript string) string {
	entry := fmt.Sprintf("[%s %ds]", database.LogVoice, duration)
	if caption = strings.TrimSpace(caption); caption != "" {
		entry += " " + caption
	}
	if transcript != "" {
		entry += ": " + transcript
	}
	return entry
}
