package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobdigest/internal/poller"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List the search queries one cycle issues",
	Long:  "Reads the config and prints the role × location × page matrix in request order.",
	RunE:  runQueries,
}

func init() {
	rootCmd.AddCommand(queriesCmd)
}

func runQueries(cmd *cobra.Command, args []string) error {
	cfg, _ := mustLoad()
	settings := pollerSettings(cfg)
	queries := poller.Queries(settings)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-5s %-45s %s\n", "#", "Query", "Page")
	fmt.Fprintln(out, strings.Repeat("─", 56))
	for i, q := range queries {
		fmt.Fprintf(out, "%-5d %-45s %d\n", i+1, q.Role+" in "+q.Location, q.Page)
	}

	fmt.Fprintf(out, "\nTotal: %d requests (%d roles × %d locations × %d pages), politeness delay %s per location\n",
		len(queries), len(settings.Roles), len(poller.Locations(settings)), settings.PagesPerQuery, settings.PolitenessDelay)
	return nil
}
