package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/poller"
	"github.com/amishk599/jobdigest/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Run one poll cycle now, then one every RUN_EVERY_HOURS; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	logger.Info("config loaded",
		"interval", cfg.RunEvery.String(),
		"roles", len(cfg.Filters.RoleKeywords),
		"locations", len(cfg.Search.Locations),
		"include_remote", cfg.Search.IncludeRemote,
		"pages_per_query", cfg.Search.PagesPerQuery,
		"max_post_age", cfg.Filters.MaxPostAge.String(),
		"store", cfg.Store.Driver,
		"notifier", cfg.Notification.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	lock, closeLock, err := setupRunLock(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up run lock", "error", err)
		os.Exit(1)
	}
	defer closeLock()

	httpClient := &http.Client{Timeout: providerTimeout}
	n := setupNotifier(cfg, httpClient, logger)
	runner := poller.NewRunner(buildPoller(cfg, jobStore, n, httpClient, logger), lock, logger)

	sched := scheduler.NewScheduler(func(ctx context.Context) {
		runner.RunOnce(ctx)
	}, cfg.RunEvery, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
