package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/vault-sync/internal/convert"
	"github.com/pdiddy/vault-sync/internal/enhance"
	"github.com/pdiddy/vault-sync/internal/ledger"
	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/internal/pipeline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download, convert, and move matching Drive documents into the vault",
	Long: `Sync lists Drive documents you own or that are shared with you, keeps
those whose title starts with a configured prefix, downloads each as .docx,
converts it to Markdown with pandoc, optionally runs the formatting pass,
and moves the result into the vault.

A document is skipped when its Markdown file is already in the vault. Any
single document failing is reported and the run continues.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("vault-dir", "", "destination vault directory (default ~/Documents/Obsidian)")
	syncCmd.Flags().String("staging-dir", "", "working directory for downloads (default ./downloads)")
	syncCmd.Flags().Int("workers", 0, "documents processed concurrently (default 1)")
	syncCmd.Flags().Bool("enhance", false, "clean up formatting with a language model")
	syncCmd.Flags().Bool("keep-staged", false, "keep downloaded .docx files after conversion")
	syncCmd.Flags().String("backend", "", "conversion backend: pandoc or container")
	syncCmd.Flags().Bool("no-ledger", false, "do not record the run in the ledger")

	viper.BindPFlag(keyVaultDir, syncCmd.Flags().Lookup("vault-dir"))
	viper.BindPFlag(keyStagingDir, syncCmd.Flags().Lookup("staging-dir"))
	viper.BindPFlag(keyWorkers, syncCmd.Flags().Lookup("workers"))
	viper.BindPFlag(keyEnhance, syncCmd.Flags().Lookup("enhance"))
	viper.BindPFlag(keyKeepStaged, syncCmd.Flags().Lookup("keep-staged"))
	viper.BindPFlag(keyBackend, syncCmd.Flags().Lookup("backend"))

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		cfg.LedgerPath = ""
	}

	client, err := newDriveClient(ctx, cfg.Drive, true, os.Stderr)
	if err != nil {
		return err
	}
	if acct, err := client.WhoAmI(ctx); err == nil {
		fmt.Printf("Authenticated as: %s\nName: %s\n", acct.EmailAddress, acct.DisplayName)
	} else {
		return fmt.Errorf("checking Drive access: %w", err)
	}

	conv, err := convert.New(ctx, cfg.Conversion)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Lister:    client,
		Fetcher:   client,
		Converter: conv,
	}

	if cfg.Enhancement.Enabled {
		e, err := enhance.NewFromConfig(cfg.Enhancement)
		if err != nil {
			return err
		}
		deps.Enhancer = e
	}

	if cfg.LedgerPath != "" {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			logger.Warn("ledger disabled: %v", err)
		} else {
			defer store.Close()
			deps.Recorder = store
		}
	}

	summary, err := pipeline.Run(ctx, cfg, deps, os.Stdout)
	if err != nil {
		return err
	}
	logger.Debug("run %s: %d placed, %d skipped, %d failed", summary.RunID, summary.Placed, summary.PlaceSkipped, summary.Failed)
	return nil
}
