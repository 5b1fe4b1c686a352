// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package drive lists and downloads meeting documents from Google Drive.
// Listing is fatal on error; downloads are per-document and leave error
// handling to the caller.
package drive

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// Query selects native documents and .docx files that the account owns or
// that were shared with it.
const Query = "(mimeType='" + types.MimeGoogleDoc + "' or " +
	"mimeType='" + types.MimeDocx + "') and " +
	"(sharedWithMe=true or 'me' in owners)"

// listFields limits list responses to what RemoteDocument needs.
const listFields = "nextPageToken, files(id, name, mimeType, owners(displayName), shared, modifiedTime)"

const unknownOwner = "Unknown"

// Account identifies the authenticated Drive user.
type Account struct {
	DisplayName  string
	EmailAddress string
}

// Client wraps a Drive service with rate limiting.
type Client struct {
	svc      *drive.Service
	limiter  *RateLimiter
	pageSize int64
}

// NewService creates a Drive API service authenticated by ts.
func NewService(ctx context.Context, ts oauth2.TokenSource) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return svc, nil
}

// NewClient returns a Client for svc configured by cfg.
func NewClient(svc *drive.Service, cfg types.DriveConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = types.DefaultPageSize
	}
	return &Client{
		svc:      svc,
		limiter:  NewRateLimiter(cfg.RequestsPerSecond),
		pageSize: pageSize,
	}
}

// WhoAmI returns the account the client is authenticated as.
func (c *Client) WhoAmI(ctx context.Context) (Account, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Account{}, err
	}
	about, err := c.svc.About.Get().Fields("user(displayName, emailAddress)").Context(ctx).Do()
	if err != nil {
		return Account{}, fmt.Errorf("fetching account: %w", c.classify(err))
	}
	if about.User == nil {
		return Account{}, fmt.Errorf("fetching account: response has no user")
	}
	return Account{
		DisplayName:  about.User.DisplayName,
		EmailAddress: about.User.EmailAddress,
	}, nil
}

// List returns every document matching Query, following all result pages.
func (c *Client) List(ctx context.Context) ([]types.RemoteDocument, error) {
	var docs []types.RemoteDocument

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	call := c.svc.Files.List().
		Q(Query).
		Fields(listFields).
		PageSize(c.pageSize).
		Context(ctx)

	page := 0
	err := call.Pages(ctx, func(fl *drive.FileList) error {
		page++
		logger.Debug("drive: list page %d (%d files)", page, len(fl.Files))
		for _, f := range fl.Files {
			docs = append(docs, toRemoteDocument(f))
		}
		if fl.NextPageToken != "" {
			return c.limiter.Wait(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", c.classify(err))
	}
	return docs, nil
}

// Fetch writes the document's content to w in .docx form. Native documents
// are exported; uploaded .docx files are downloaded as-is.
func (c *Client) Fetch(ctx context.Context, doc types.RemoteDocument, w io.Writer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var (
		body io.ReadCloser
		err  error
	)
	if doc.IsNative() {
		resp, e := c.svc.Files.Export(doc.ID, types.MimeDocx).Context(ctx).Download()
		if e == nil {
			body = resp.Body
		}
		err = e
	} else {
		resp, e := c.svc.Files.Get(doc.ID).Context(ctx).Download()
		if e == nil {
			body = resp.Body
		}
		err = e
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", doc.ID, c.classify(err))
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("reading content of %s: %w", doc.ID, err)
	}
	return nil
}

// classify maps err to a sentinel and starts a backoff on rate limiting.
func (c *Client) classify(err error) error {
	if IsRateLimited(err) {
		c.limiter.Backoff(0)
	}
	return Classify(err)
}

func toRemoteDocument(f *drive.File) types.RemoteDocument {
	owner := unknownOwner
	if len(f.Owners) > 0 && f.Owners[0] != nil && f.Owners[0].DisplayName != "" {
		owner = f.Owners[0].DisplayName
	}
	doc := types.RemoteDocument{
		ID:               f.Id,
		Title:            f.Name,
		OwnerDisplayName: owner,
		IsShared:         f.Shared,
		MimeType:         f.MimeType,
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		doc.ModifiedTime = t
	}
	return doc
}
