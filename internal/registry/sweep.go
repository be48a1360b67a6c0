package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/wisbric/meetplane/internal/repository"
)

// RunHealthSweep ticks every interval and demotes stale MC/MH rows to
// unhealthy, until ctx is cancelled. It never holds a transaction open
// across the wait.
func RunHealthSweep(ctx context.Context, mc *repository.MeetingControllerRepository, mh *repository.MediaHandlerRepository, staleThreshold, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := mc.MarkStale(ctx, staleThreshold); err != nil {
				logger.Error("marking stale meeting controllers", "error", err)
			} else if n > 0 {
				logger.Info("marked stale meeting controllers", "count", n)
			}
			if n, err := mh.MarkStale(ctx, staleThreshold); err != nil {
				logger.Error("marking stale media handlers", "error", err)
			} else if n > 0 {
				logger.Info("marked stale media handlers", "count", n)
			}
		}
	}
}

// RunAssignmentCleanup ticks every interval, expiring assignments whose
// last activity predates inactivityCutoff and deleting rows older than
// retentionCutoff, until ctx is cancelled.
func RunAssignmentCleanup(ctx context.Context, assignments *repository.MeetingAssignmentRepository, inactivityCutoff, retentionCutoff, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if n, err := assignments.ExpireInactiveSince(ctx, now.Add(-inactivityCutoff)); err != nil {
				logger.Error("expiring inactive assignments", "error", err)
			} else if n > 0 {
				logger.Info("expired inactive assignments", "count", n)
			}
			if n, err := assignments.DeleteOlderThan(ctx, now.Add(-retentionCutoff)); err != nil {
				logger.Error("deleting retired assignments", "error", err)
			} else if n > 0 {
				logger.Info("deleted retired assignments", "count", n)
			}
		}
	}
}
