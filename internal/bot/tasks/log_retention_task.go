package tasks

import (
	"context"
	"fmt"
	"time"
)

const retentionTimeout = 5 * time.Minute

// newLogRetentionTask deletes message logs older than database.log_retention.
// A zero retention keeps logs forever.
func newLogRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "log_retention")

	return func(ctx context.Context) error {
		retention := deps.Config.Database.LogRetention
		if retention <= 0 {
			log.DebugContext(ctx, "Log retention disabled, skipping")
			return nil
		}

		cutoff := deps.clock().Now().Add(-retention)
		ctx, cancel := context.WithTimeout(ctx, retentionTimeout)
		defer cancel()

		deleted, err := deps.Store.DeleteMessageLogsBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Log retention task failed", "error", err, "cutoff", cutoff)
			return fmt.Errorf("log retention failed: %w", err)
		}

		log.InfoContext(ctx, "Deleted expired message logs", "deleted", deleted, "cutoff", cutoff)
		return nil
	}
}
