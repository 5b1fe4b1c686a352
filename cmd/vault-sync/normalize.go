package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/vault-sync/internal/naming"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [titles...]",
	Short: "Print the vault file name for document titles",
	Long: `Normalize applies the title rewrite used for staged and vault files and
prints one name per line. With no arguments titles are read from stdin, one
per line.`,
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	namer := naming.New(cfg.Naming.TaggedPrefixes)

	if len(args) > 0 {
		for _, title := range args {
			fmt.Fprintln(cmd.OutOrStdout(), namer.Normalize(title))
		}
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		fmt.Fprintln(cmd.OutOrStdout(), namer.Normalize(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading titles: %w", err)
	}
	return nil
}
