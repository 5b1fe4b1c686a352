// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth obtains OAuth tokens for the Drive API. Tokens are cached in
// a JSON file; when no cached token exists the installed-app flow runs
// through a loopback callback server.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrNoToken is returned when no cached token exists and interactive login
// is not allowed.
var ErrNoToken = errors.New("no cached OAuth token; run `vault-sync auth` first")

// callbackTimeout bounds how long the browser flow waits for the redirect.
const callbackTimeout = 5 * time.Minute

// Scopes requested from Google. Read-only access is enough to list and
// export documents.
var Scopes = []string{drive.DriveReadonlyScope}

// LoadConfig reads the OAuth client secret JSON at path.
func LoadConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OAuth client credentials %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing OAuth client credentials %s: %w", path, err)
	}
	return cfg, nil
}

// LoadToken reads a cached token from path.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("reading token %s: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// TokenSource returns a token source backed by the cache at tokenPath.
// When no token is cached and interactive is true, Login runs first and
// prompts on w. Refreshed tokens are written back to the cache.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tokenPath string, interactive bool, w io.Writer) (oauth2.TokenSource, error) {
	tok, err := LoadToken(tokenPath)
	if errors.Is(err, ErrNoToken) && interactive {
		tok, err = Login(ctx, cfg, w)
		if err == nil {
			err = SaveToken(tokenPath, tok)
		}
	}
	if err != nil {
		return nil, err
	}
	return &cachingSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}, nil
}

// Login runs the installed-app authorization code flow with PKCE, asking
// the user on w to open the consent URL.
func Login(ctx context.Context, cfg *oauth2.Config, w io.Writer) (*oauth2.Token, error) {
	state := uuid.NewString()
	srv := NewCallbackServer(state)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	defer srv.Stop()

	flow := *cfg
	flow.RedirectURL = srv.RedirectURI()

	verifier := oauth2.GenerateVerifier()
	url := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(w, "Open the following URL in your browser to authorize vault-sync:\n\n  %s\n\n", url)

	code, err := srv.WaitForCode(ctx, callbackTimeout)
	if err != nil {
		return nil, err
	}

	tok, err := flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// cachingSource persists tokens whenever the underlying source refreshes.
type cachingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (c *cachingSource) Token() (*oauth2.Token, error) {
	tok, err := c.base.Token()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok.AccessToken != c.last {
		if err := SaveToken(c.path, tok); err != nil {
			return nil, err
		}
		c.last = tok.AccessToken
	}
	return tok, nil
}
