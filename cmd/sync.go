package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"greader-sync/bootstrap"
	"greader-sync/service/scheduler"
)

type syncResults []scheduler.Result

func (r syncResults) tableHeader() []string {
	return []string{"account", "status", "feeds", "failed", "messages", "error"}
}

func (r syncResults) tableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, result := range r {
		row := []string{result.AccountID, statusMark("failed"), "-", "-", "-", result.Error}
		if report := result.Report; report != nil {
			row[1] = statusMark(report.Status)
			row[2] = strconv.Itoa(report.FeedsTotal)
			row[3] = strconv.Itoa(report.FeedsFailed)
			row[4] = strconv.Itoa(report.MessagesSaved)
		}
		rows = append(rows, row)
	}
	return rows
}

var syncCmd = &cobra.Command{
	Use:   "sync [account...]",
	Short: "Run one sync cycle and exit",
	Long: `Run one sync cycle for the named accounts, or for every configured
account when none are given, and print the cycle reports.

With --feed only the given feeds of a single account are synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, _ := cmd.Flags().GetStringSlice("feed")
		if len(feeds) > 0 && len(args) != 1 {
			return fmt.Errorf("--feed needs exactly one account, got %d", len(args))
		}

		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		sched := bootstrap.NewScheduler(deps)
		var results []scheduler.Result
		switch {
		case len(feeds) > 0:
			result, ok := sched.SyncAccount(cmd.Context(), args[0], feeds...)
			if !ok {
				return fmt.Errorf("unknown account %q", args[0])
			}
			results = []scheduler.Result{result}
		case len(args) > 0:
			runners := make([]scheduler.CycleRunner, 0, len(args))
			for _, id := range args {
				account, err := lookupAccount(deps, id)
				if err != nil {
					return err
				}
				runners = append(runners, account.Sync)
			}
			results = scheduler.NewScheduler(runners, deps.Runs, logger).SyncAll(cmd.Context(), bootstrap.SchedulerConfig(deps))
		default:
			results = sched.SyncAll(cmd.Context(), bootstrap.SchedulerConfig(deps))
		}

		format, _ := cmd.Flags().GetString("output")
		if err := writeOutput(cmd.OutOrStdout(), format, syncResults(results)); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d accounts failed to sync", failed, len(results))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringP("output", "o", "table", "output format (table, json or yaml)")
	syncCmd.Flags().StringSlice("feed", nil, "feed stream id to sync, repeatable (single account only)")
	rootCmd.AddCommand(syncCmd)
}
