package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tutorbot/tutorbot/internal/ai"
	"github.com/tutorbot/tutorbot/internal/broadcast"
	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/session"
)

// HandlerDeps provides dependencies for Telegram command and message handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	AI          ai.Client
	Sessions    *session.Store
	Broadcaster *broadcast.Broadcaster
	Limiter     *UserLimiter
	// HTTPClient downloads files from Telegram; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// Lifetime is cancelled at shutdown and bounds work that outlives an
	// update, such as broadcasts. Nil means the work is never cancelled.
	Lifetime context.Context
}

// detach returns a context that keeps ctx's values but is cancelled only
// when the handlers' lifetime ends, not when the update finishes.
func (d HandlerDeps) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if d.Lifetime == nil {
		return bgCtx, cancel
	}
	if d.Lifetime.Err() != nil {
		cancel()
		return bgCtx, cancel
	}
	stop := context.AfterFunc(d.Lifetime, cancel)
	return bgCtx, func() {
		stop()
		cancel()
	}
}

func (d HandlerDeps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}
