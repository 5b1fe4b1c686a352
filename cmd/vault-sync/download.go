package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/vault-sync/internal/acquire"
	"github.com/pdiddy/vault-sync/internal/filter"
	"github.com/pdiddy/vault-sync/internal/naming"
	"github.com/pdiddy/vault-sync/internal/pipeline"
	"github.com/pdiddy/vault-sync/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download matching Drive documents into staging",
	Long: `Download fetches every document a sync would pick up into the staging
directory as <name>.docx, without converting or placing anything. Files
already staged are skipped. Use convert on the results to finish by hand.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("staging-dir", "", "working directory for downloads (default ./downloads)")
	downloadCmd.Flags().Bool("all", false, "include documents that do not match the prefix filter")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("staging-dir"); dir != "" {
		if cfg.Acquisition.StagingDir, err = expandHome(dir); err != nil {
			return err
		}
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		cfg.Filter.Enabled = false
	}

	client, err := newDriveClient(ctx, cfg.Drive, true, os.Stderr)
	if err != nil {
		return err
	}

	result, err := downloadMatching(ctx, client, client, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed to download", result.Failed)
	}
	return nil
}

// downloadMatching lists, filters and stages documents in listing order.
func downloadMatching(ctx context.Context, l pipeline.Lister, f acquire.Fetcher, cfg types.Config, w io.Writer) (acquire.BatchResult, error) {
	docs, err := l.List(ctx)
	if err != nil {
		return acquire.BatchResult{}, err
	}
	matched := filter.ByPrefix(docs, cfg.Filter.Prefixes, cfg.Filter.Enabled)
	fmt.Fprintf(w, "Found %d files, %d matching\n", len(docs), len(matched))

	namer := naming.New(cfg.Naming.TaggedPrefixes)
	return acquire.AcquireBatch(ctx, f, namer, matched, cfg.Acquisition, w), nil
}
