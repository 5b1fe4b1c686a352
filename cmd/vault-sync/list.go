package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/vault-sync/internal/filter"
	"github.com/pdiddy/vault-sync/internal/naming"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the Drive documents a sync would pick up",
	Long: `List queries Drive and prints each matching document with the file
name it would take in the vault. Use --all to include documents the prefix
filter rejects.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Bool("all", false, "include documents that do not match the prefix filter")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	client, err := newDriveClient(ctx, cfg.Drive, true, os.Stderr)
	if err != nil {
		return err
	}
	docs, err := client.List(ctx)
	if err != nil {
		return err
	}
	if !all {
		docs = filter.ByPrefix(docs, cfg.Filter.Prefixes, cfg.Filter.Enabled)
	}

	namer := naming.New(cfg.Naming.TaggedPrefixes)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tOWNER\tSHARED\tVAULT FILE")
	for _, d := range docs {
		name := namer.Normalize(d.Title)
		if name == "" {
			name = "(empty name)"
		} else {
			name += ".md"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", d.Title, d.OwnerDisplayName, d.IsShared, name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d document(s)\n", len(docs))
	return nil
}
