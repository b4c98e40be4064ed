package telegram

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/config"
)

func TestApplyMiddleware_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, update *models.Update) {
				order = append(order, name)
				next(ctx, b, update)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		order = append(order, "handler")
	}, []bot.Middleware{mark("outer"), mark("inner")})

	h(context.Background(), nil, &models.Update{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBotCommands(t *testing.T) {
	t.Parallel()

	commands := botCommands()
	require.Len(t, commands, 3)
	assert.Equal(t, "help", commands[0].Command)
	assert.Equal(t, "reset", commands[1].Command)
	assert.Equal(t, "start", commands[2].Command)
}

func TestNewTelegramBot_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegramBot(config.TelegramConfig{}, nil)
	assert.Error(t, err)
}

func TestRegisterHandlers_NilBot(t *testing.T) {
	t.Parallel()

	assert.Error(t, RegisterHandlers(nil, nil, nil))
}
