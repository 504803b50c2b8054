package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/browse"
	"github.com/amishk599/jobdigest/internal/model"
)

var browseSince time.Duration

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored jobs interactively (TUI)",
	Long:  "Shows a window picker, then a split-pane view of stored jobs and the ones that still match the current filters. With --since the picker is skipped.",
	RunE:  runBrowseCmd,
}

func init() {
	browseCmd.Flags().DurationVar(&browseSince, "since", 24*time.Hour, "show jobs first seen within this window (0 = everything)")
	rootCmd.AddCommand(browseCmd)
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	jobStore, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	matcher := buildMatcher(cfg)

	windows := browse.DefaultWindows(cfg.RunEvery)
	fixed := cmd.Flags().Changed("since")
	if fixed {
		windows = []browse.Window{{Label: windowLabel(browseSince), Since: browseSince}}
	}

	for {
		choice := 0
		if !fixed {
			choice, err = browse.RunWindowPicker(windows)
			if err != nil {
				fmt.Printf("Picker error: %v\n", err)
				return nil
			}
			if choice < 0 {
				return nil
			}
		}
		w := windows[choice]

		jobs, err := browse.RunLoader(w.Label, func(ctx context.Context) ([]model.Job, error) {
			return jobStore.QuerySince(ctx, sinceUTC(w.Since, time.Now()), 0)
		})
		if err != nil {
			fmt.Printf("Error loading jobs: %v\n", err)
			if fixed {
				return nil
			}
			continue
		}

		wantQuit, err := browse.Run(w.Label, jobs, matcher)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit || fixed {
			return nil
		}
	}
}

// sinceUTC is the lower bound for QuerySince; a zero window means everything.
func sinceUTC(window time.Duration, now time.Time) int64 {
	if window <= 0 {
		return 0
	}
	return now.Add(-window).Unix()
}

func windowLabel(d time.Duration) string {
	if d <= 0 {
		return "Everything stored"
	}
	return "Last " + d.String()
}
