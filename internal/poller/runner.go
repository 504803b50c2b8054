package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/amishk599/jobdigest/internal/runlock"
)

// Cycle is one poll cycle; *Poller implements it.
type Cycle interface {
	Poll(ctx context.Context) (RunReport, error)
}

// Runner executes cycles for the scheduler. It refuses to start a cycle while
// another holds the lock, and no failure inside a cycle escapes RunOnce.
type Runner struct {
	cycle  Cycle
	lock   runlock.Locker
	logger *slog.Logger
}

func NewRunner(cycle Cycle, lock runlock.Locker, logger *slog.Logger) *Runner {
	return &Runner{cycle: cycle, lock: lock, logger: logger}
}

// RunOnce runs a single guarded cycle and returns its report. ran is false
// when the cycle was skipped because the lock was busy or unavailable.
func (r *Runner) RunOnce(ctx context.Context) (report RunReport, ran bool) {
	release, ok, err := r.lock.TryLock(ctx)
	if err != nil {
		r.logger.Error("acquiring run lock failed, skipping cycle", "error", err)
		return RunReport{}, false
	}
	if !ok {
		r.logger.Warn("previous poll cycle still running, skipping")
		return RunReport{}, false
	}
	defer release()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("poll cycle panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	ran = true
	report, err = r.cycle.Poll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.logger.Info("poll cycle interrupted", "run_id", report.RunID, "error", err)
	default:
		r.logger.Error("poll cycle failed", "run_id", report.RunID, "error", err)
	}
	return report, true
}
