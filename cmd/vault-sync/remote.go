// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"

	"github.com/pdiddy/vault-sync/internal/auth"
	"github.com/pdiddy/vault-sync/internal/drive"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// newDriveClient authenticates with the cached token and returns a Drive
// client. When interactive is true and no token is cached, the browser
// flow runs and its prompt goes to w.
func newDriveClient(ctx context.Context, cfg types.DriveConfig, interactive bool, w io.Writer) (*drive.Client, error) {
	oauthCfg, err := auth.LoadConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	ts, err := auth.TokenSource(ctx, oauthCfg, cfg.TokenFile, interactive, w)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, ts)
	if err != nil {
		return nil, err
	}
	return drive.NewClient(svc, cfg), nil
}
