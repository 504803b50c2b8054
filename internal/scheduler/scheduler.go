package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one unit of scheduled work. It must handle its own errors.
type Task func(ctx context.Context)

// Scheduler runs a task once at startup and then on a fixed interval. Runs
// never overlap: a tick that fires while the previous run is still going is
// skipped.
type Scheduler struct {
	task     Task
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for task at the given interval.
func NewScheduler(task Task, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		task:     task,
		interval: interval,
		logger:   logger,
	}
}

// Run registers the interval job, runs one cycle immediately, then starts the
// cron loop. It blocks until ctx is cancelled, waits for an in-flight run to
// finish, and returns nil. Registration failure is returned before any run.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval < time.Second {
		return fmt.Errorf("interval %s is shorter than one second", s.interval)
	}

	logger := cronLogger{s.logger}
	// Recover must wrap the task inside SkipIfStillRunning, otherwise a
	// panic leaks the skip token and every later tick is skipped.
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	spec := "@every " + s.interval.String()
	if _, err := c.AddFunc(spec, func() { s.task(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", spec, err)
	}

	s.logger.Info("starting scheduler", "interval", s.interval.String())

	// The first tick is measured from Start, so it lands one interval after
	// this run returns.
	s.task(ctx)
	if ctx.Err() != nil {
		s.logger.Info("shutting down scheduler")
		return nil
	}

	c.Start()
	<-ctx.Done()

	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's internal logging through slog. cron reports every
// wake-up at Info, which is noise at our Info level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
