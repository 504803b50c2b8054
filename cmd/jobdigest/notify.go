package main

import (
	"context"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/config"
	"github.com/amishk599/jobdigest/internal/model"
	"github.com/amishk599/jobdigest/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test digest",
	Long:  "Renders a one-job sample digest and sends it with the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	if cfg.Notification.Type == config.NotifierEmail && cfg.SMTP.Host == "" {
		logger.Error("SMTP_HOST not configured, nothing to test")
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: providerTimeout}
	n := setupNotifier(cfg, httpClient, logger)
	renderer := buildRenderer(cfg, logger)

	build := func(jobs []model.Job) model.Digest {
		return renderer.Build(jobs, cfg.Search.Country, cfg.RunEvery)
	}
	if err := notifier.SendTestMessage(context.Background(), n, build); err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully", "notifier", cfg.Notification.Type)
	return nil
}
