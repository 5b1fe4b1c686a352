package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/vault-sync/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize read-only access to Google Drive",
	Long: `Auth runs the browser consent flow using the OAuth client secret file
(drive.credentials_file, default ./credentials.json) and caches the token
(drive.token_file, default ~/.config/vault-sync/token.json). Later runs
refresh the cached token without prompting.`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().Bool("force", false, "discard the cached token and sign in again")
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := buildConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}

	if force, _ := cmd.Flags().GetBool("force"); force {
		if err := os.Remove(cfg.Drive.TokenFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing cached token: %w", err)
		}
	}

	oauthCfg, err := auth.LoadConfig(cfg.Drive.CredentialsFile)
	if err != nil {
		return err
	}
	if _, err := auth.LoadToken(cfg.Drive.TokenFile); err != nil {
		tok, err := auth.Login(ctx, oauthCfg, os.Stdout)
		if err != nil {
			return err
		}
		if err := auth.SaveToken(cfg.Drive.TokenFile, tok); err != nil {
			return err
		}
		fmt.Printf("Token saved to %s\n", cfg.Drive.TokenFile)
	}

	client, err := newDriveClient(ctx, cfg.Drive, false, os.Stdout)
	if err != nil {
		return err
	}
	acct, err := client.WhoAmI(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Authenticated as: %s\nName: %s\n", acct.EmailAddress, acct.DisplayName)
	return nil
}
