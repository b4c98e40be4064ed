// Package tasks implements the scheduled housekeeping jobs of tutorbot.
package tasks

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/session"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Sessions *session.Store
	Config   *config.Config
	// Clock defaults to the real clock when nil.
	Clock clockwork.Clock
}

func (d TaskDeps) clock() clockwork.Clock {
	if d.Clock == nil {
		return clockwork.NewRealClock()
	}
	return d.Clock
}
