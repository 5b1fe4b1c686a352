// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Stage names a pipeline stage.
type Stage string

const (
	StageList     Stage = "list"
	StageDownload Stage = "download"
	StageConvert  Stage = "convert"
	StageEnhance  Stage = "enhance"
	StagePlace    Stage = "place"
)

// Outcome is the terminal state of one document in a run.
type Outcome string

const (
	OutcomePlaced  Outcome = "placed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Reason explains a skipped or failed outcome.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonEmptyName      Reason = "empty_name"
	ReasonDownloadFailed Reason = "download_failed"
	ReasonEmptyDownload  Reason = "empty_download"
	ReasonConvertFailed  Reason = "convert_failed"
	ReasonAlreadyInVault Reason = "already_in_vault"
	ReasonDuplicateName  Reason = "duplicate_name"
	ReasonPlaceFailed    Reason = "place_failed"
)

// ItemResult records what happened to a single document. It replaces
// exception-driven control flow: each stage returns a result and the
// pipeline aggregates them.
type ItemResult struct {
	Document  RemoteDocument `json:"document" yaml:"document"`
	BaseName  string         `json:"base_name" yaml:"base_name"`
	Stage     Stage          `json:"stage" yaml:"stage"`
	Outcome   Outcome        `json:"outcome" yaml:"outcome"`
	Reason    Reason         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Enhanced  bool           `json:"enhanced,omitempty" yaml:"enhanced,omitempty"`
	VaultPath string         `json:"vault_path,omitempty" yaml:"vault_path,omitempty"`

	// Converted carries the document between the convert and place stages.
	Converted *ConvertedDocument `json:"-" yaml:"-"`
}

// Failed reports whether the item failed at some stage.
func (r ItemResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// RunSummary aggregates the outcome of a pipeline run.
type RunSummary struct {
	RunID           string       `json:"run_id" yaml:"run_id"`
	Listed          int          `json:"listed" yaml:"listed"`
	Matched         int          `json:"matched" yaml:"matched"`
	Downloaded      int          `json:"downloaded" yaml:"downloaded"`
	DownloadSkipped int          `json:"download_skipped" yaml:"download_skipped"`
	Converted       int          `json:"converted" yaml:"converted"`
	Enhanced        int          `json:"enhanced" yaml:"enhanced"`
	Placed          int          `json:"placed" yaml:"placed"`
	PlaceSkipped    int          `json:"place_skipped" yaml:"place_skipped"`
	Failed          int          `json:"failed" yaml:"failed"`
	Items           []ItemResult `json:"items" yaml:"items"`
}

// HasFailures reports whether any document failed.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// Staged returns the number of documents available in staging, whether
// freshly downloaded or already present.
func (s RunSummary) Staged() int {
	return s.Downloaded + s.DownloadSkipped
}
