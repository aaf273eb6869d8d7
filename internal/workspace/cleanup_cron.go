package workspace

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// CleanupScheduler runs Manager.Cleanup whenever expr matches the current
// minute, checking it with gronx once per tick period. It is the only
// cron-scheduled job in the gateway.
type CleanupScheduler struct {
	mgr        *Manager
	expr       string
	olderThan  time.Duration
	gron       gronx.Gronx
	tickPeriod time.Duration
}

// NewCleanupScheduler builds a scheduler for expr (a standard 5-field cron
// expression, e.g. "0 3 * * *") that removes workspaces untouched for
// olderThan.
func NewCleanupScheduler(mgr *Manager, expr string, olderThan time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		mgr:        mgr,
		expr:       expr,
		olderThan:  olderThan,
		gron:       gronx.New(),
		tickPeriod: time.Minute,
	}
}

// Run blocks, checking expr every tick period and running Cleanup whenever
// it matches, until ctx is cancelled.
func (s *CleanupScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.gron.IsDue(s.expr)
			if err != nil {
				slog.Error("workspace cleanup: invalid cron expression", "expr", s.expr, "error", err)
				continue
			}
			if !due {
				continue
			}
			removed, err := s.mgr.Cleanup(ctx, s.olderThan)
			if err != nil {
				slog.Error("workspace cleanup run failed", "error", err)
				continue
			}
			slog.Info("workspace cleanup run complete", "removed", removed)
		}
	}
}
