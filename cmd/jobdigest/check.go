package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/model"
	"github.com/amishk599/jobdigest/internal/notifier"
	"github.com/amishk599/jobdigest/internal/store"
)

var dryRun bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one poll cycle and exit",
	Long:  "One-shot poll: runs a full cycle and exits. With --dry-run nothing is written to the store and the digest is logged instead of sent.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "use an in-memory store and log the digest instead of sending it")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: providerTimeout}

	var (
		jobStore model.JobStore
		n        model.Notifier
	)
	if dryRun {
		logger.Info("dry-run mode: no jobs will be stored and no digest will be sent")
		jobStore = store.NewNopStore(time.Now)
		n = notifier.NewLogNotifier(logger)
	} else {
		s, err := openStore(ctx, cfg)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		jobStore = s
		n = setupNotifier(cfg, httpClient, logger)
	}
	defer jobStore.Close()

	report, err := buildPoller(cfg, jobStore, n, httpClient, logger).Poll(ctx)
	if err != nil {
		logger.Error("poll failed", "run_id", report.RunID, "error", err)
		os.Exit(1)
	}

	logger.Info("check complete",
		"run_id", report.RunID,
		"queries", report.Queries,
		"failed_queries", report.FailedQueries,
		"fetched", report.Fetched,
		"matched", report.Matched,
		"unique", report.Unique,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"digest_size", report.DigestSize,
		"notified", report.Notified,
		"duration", report.Duration.String(),
	)
	if report.NotifyErr != nil {
		os.Exit(1)
	}
	return nil
}
