package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(name string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  append([]tgbot.Middleware{trackCommand(deps, name)}, mw...),
		}
	}

	command("start", NewStartHandler(deps))
	command("help", NewHelpHandler(deps))
	command("reset", NewResetHandler(deps))

	adminOnly := AdminOnly(deps)
	command("stats", NewStatsHandler(deps), adminOnly)
	command("broadcast", NewBroadcastHandler(deps), adminOnly)
	command("clear_logs", NewClearLogsHandler(deps), adminOnly)

	return handlers
}

// NewDefaultHandler returns the handler for every message that is not a
// registered command. It routes by content: voice notes, photos, documents,
// audio, video and finally plain text.
func NewDefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	chat := NewChatHandler(deps)
	media := mediaHandler{deps}
	voice := NewVoiceHandler(deps)

	route := func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return
		}
		switch {
		case msg.Voice != nil:
			voice(ctx, b, update)
		case len(msg.Photo) > 0:
			media.handlePhoto(ctx, b, msg)
		case msg.Document != nil:
			media.handleDocument(ctx, b, msg)
		case msg.Audio != nil:
			media.handleAudio(ctx, b, msg)
		case msg.Video != nil:
			media.handleVideo(ctx, b, msg)
		case msg.Text != "":
			chat(ctx, b, update)
		}
	}
	return RateLimit(deps)(route)
}
