// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/vault-sync/internal/ledger"
	"github.com/pdiddy/vault-sync/internal/pipeline"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently placed documents and past runs",
	Long: `History reads the ledger kept in the staging directory and lists the
documents most recently moved into the vault. Use --runs for one line per
run, or --last to print the report of the most recent run.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of entries")
	historyCmd.Flags().Bool("runs", false, "list runs instead of placements")
	historyCmd.Flags().Bool("last", false, "print the last run report")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := buildConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	showRuns, _ := cmd.Flags().GetBool("runs")
	last, _ := cmd.Flags().GetBool("last")
	asJSON, _ := cmd.Flags().GetBool("json")

	if last {
		report, err := pipeline.LoadReport(cfg.Acquisition.StagingDir)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		s := report.Summary
		fmt.Printf("Run %s (%s, %s)\n", s.RunID, report.Started.Local().Format(time.DateTime), report.Finished.Sub(report.Started).Round(time.Second))
		fmt.Printf("  %s\n", report.Outcome)
		fmt.Printf("  listed %d, matched %d, downloaded %d, converted %d, enhanced %d\n",
			s.Listed, s.Matched, s.Downloaded, s.Converted, s.Enhanced)
		fmt.Printf("  placed %d, skipped %d, failed %d\n", s.Placed, s.PlaceSkipped, s.Failed)
		for _, item := range s.Items {
			if item.Failed() {
				fmt.Printf("  failed:  %s [%s] %s\n", item.Document.Title, item.Reason, item.Error)
			}
		}
		return nil
	}

	if cfg.LedgerPath == "" {
		return fmt.Errorf("ledger is disabled")
	}
	if _, err := os.Stat(cfg.LedgerPath); err != nil {
		return fmt.Errorf("no ledger at %s: %w", cfg.LedgerPath, err)
	}
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if showRuns {
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(runs)
		}
		fmt.Fprintln(tw, "STARTED\tRUN\tLISTED\tMATCHED\tPLACED\tSKIPPED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.Started.Local().Format(time.DateTime), shortID(r.ID), r.Listed, r.Matched, r.Placed, r.Skipped, r.Failed)
		}
		return tw.Flush()
	}

	placements, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(placements)
	}
	fmt.Fprintln(tw, "PLACED\tFILE\tENHANCED\tTITLE")
	for _, p := range placements {
		fmt.Fprintf(tw, "%s\t%s.md\t%t\t%s\n", p.PlacedAt.Local().Format(time.DateTime), p.BaseName, p.Enhanced, p.Title)
	}
	return tw.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
