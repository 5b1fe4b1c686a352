// Package filter selects remote documents by title prefix.
package filter

import (
	"strings"

	"github.com/pdiddy/vault-sync/pkg/types"
)

// ByPrefix returns docs unchanged when enabled is false. Otherwise it
// returns, in input order, the documents whose title starts with at least
// one of prefixes. Empty prefixes never match.
func ByPrefix(docs []types.RemoteDocument, prefixes []string, enabled bool) []types.RemoteDocument {
	if !enabled {
		return docs
	}
	var out []types.RemoteDocument
	for _, d := range docs {
		if HasAnyPrefix(d.Title, prefixes) {
			out = append(out, d)
		}
	}
	return out
}

// HasAnyPrefix reports whether title starts with any non-empty prefix.
func HasAnyPrefix(title string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(title, p) {
			return true
		}
	}
	return false
}

// ParsePrefixes splits a comma-separated prefix list, trimming surrounding
// whitespace and dropping empty entries.
func ParsePrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
