// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the vault-sync pipeline.
// Documents move through the stages as RemoteDocument (listing),
// StagedFile (download), and ConvertedDocument (conversion and enhancement)
// before being placed in the vault.
package types

import "time"

// MIME types of the documents the lister selects.
const (
	// MimeGoogleDoc is the provider's native document type.
	MimeGoogleDoc = "application/vnd.google-apps.document"

	// MimeDocx is the word-processor document type, also used as the
	// export format for native documents.
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Staging file extensions.
const (
	ExtDocx     = ".docx"
	ExtMarkdown = ".md"
)

// RemoteDocument is an immutable snapshot of a document returned by the
// remote lister.
type RemoteDocument struct {
	// ID is the provider's file identifier, used as the download handle.
	ID string `json:"id" yaml:"id"`

	// Title is the document title as stored remotely.
	Title string `json:"title" yaml:"title"`

	// OwnerDisplayName is the display name of the first owner ("Unknown" if absent).
	OwnerDisplayName string `json:"owner" yaml:"owner"`

	// IsShared reports whether the document is shared.
	IsShared bool `json:"shared" yaml:"shared"`

	// MimeType is the remote MIME type (MimeGoogleDoc or MimeDocx).
	MimeType string `json:"mime_type" yaml:"mime_type"`

	// ModifiedTime is the remote modification time, if reported.
	ModifiedTime time.Time `json:"modified_time,omitempty" yaml:"modified_time,omitempty"`
}

// IsNative reports whether the document is in the provider's native format
// and therefore has to be exported rather than downloaded.
func (d RemoteDocument) IsNative() bool {
	return d.MimeType == MimeGoogleDoc
}

// StagedFile is a downloaded .docx file waiting for conversion.
type StagedFile struct {
	// LocalPath is the path of the .docx file in the staging directory.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// BaseName is the normalized name shared by every artifact of the document.
	BaseName string `json:"base_name" yaml:"base_name"`

	// Document is the remote document the file was fetched from.
	Document RemoteDocument `json:"document" yaml:"document"`
}

// ConvertedDocument is a Markdown file produced by the converter and
// optionally rewritten by the enhancer.
type ConvertedDocument struct {
	// LocalPath is the path of the .md file in the staging directory.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// BaseName is the normalized document name.
	BaseName string `json:"base_name" yaml:"base_name"`

	// Content is the Markdown text as last written to LocalPath.
	Content string `json:"-" yaml:"-"`

	// Enhanced reports whether the enhancer rewrote the content.
	Enhanced bool `json:"enhanced" yaml:"enhanced"`

	// Document is the remote document the file was produced from.
	Document RemoteDocument `json:"document" yaml:"document"`
}

// FileName returns the file name the document takes in the vault.
func (c ConvertedDocument) FileName() string {
	return c.BaseName + ExtMarkdown
}
