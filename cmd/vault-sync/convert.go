package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/vault-sync/internal/convert"
	"github.com/pdiddy/vault-sync/internal/enhance"
	"github.com/pdiddy/vault-sync/internal/naming"
	"github.com/pdiddy/vault-sync/internal/vault"
	"github.com/pdiddy/vault-sync/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert local .docx files to Markdown",
	Long: `Convert runs local .docx files through the same conversion and optional
formatting pass as sync. Output goes to the staging directory under the
normalized file name. With --place the results are moved into the vault.
Source files are never deleted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Bool("place", false, "move converted files into the vault")
	convertCmd.Flags().Bool("enhance", false, "clean up formatting with a language model")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	place, _ := cmd.Flags().GetBool("place")
	if on, _ := cmd.Flags().GetBool("enhance"); on {
		cfg.Enhancement.Enabled = true
	}

	conv, err := convert.New(ctx, cfg.Conversion)
	if err != nil {
		return err
	}

	namer := naming.New(cfg.Naming.TaggedPrefixes)
	var files []types.StagedFile
	for _, path := range args {
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		base := namer.Normalize(title)
		if base == "" {
			fmt.Printf("failed:  %s (title normalizes to an empty file name)\n", path)
			continue
		}
		files = append(files, types.StagedFile{
			LocalPath: path,
			BaseName:  base,
			Document:  types.RemoteDocument{Title: title},
		})
	}

	if err := os.MkdirAll(cfg.Acquisition.StagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	result := convert.ConvertBatch(ctx, conv, files, cfg.Acquisition, true, os.Stdout)
	docs := result.Documents

	if cfg.Enhancement.Enabled {
		e, err := enhance.NewFromConfig(cfg.Enhancement)
		if err != nil {
			return err
		}
		for i := range docs {
			docs[i] = e.EnhanceFile(ctx, docs[i], os.Stdout)
		}
	}

	failed := result.Failed + len(args) - len(files)
	if place {
		placer := vault.New(cfg.Vault.Dir)
		if err := placer.Validate(); err != nil {
			return err
		}
		failed += placer.PlaceBatch(docs, os.Stdout).Failed
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}
