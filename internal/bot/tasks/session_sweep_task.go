package tasks

import (
	"context"

	"github.com/tutorbot/tutorbot/internal/metrics"
)

// newSessionSweepTask drops expired chat histories and refreshes the session gauge.
func newSessionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_sweep")

	return func(ctx context.Context) error {
		before := deps.Sessions.Len()
		active := deps.Sessions.Sweep()
		metrics.ActiveSessions.Set(float64(active))

		if removed := before - active; removed > 0 {
			log.InfoContext(ctx, "Swept expired sessions", "removed", removed, "active", active)
		}
		return nil
	}
}
