// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package naming turns remote document titles into file names that are safe
// on common filesystems and stable across runs. Stable names are what make
// re-runs idempotent: the downloader and the vault placer detect previously
// synced documents purely by name.
package naming

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pdiddy/vault-sync/pkg/types"
)

var (
	leadingSeparators = regexp.MustCompile(`^[\s-]+`)
	hyphenRun         = regexp.MustCompile(`-+`)
	invalidChars      = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// trademarkForms lists the registered-trademark symbol as it appears in
// titles, including its mis-decoded Latin-1 form. The longer form goes first.
var trademarkForms = []string{"Â®", "®"}

// Normalizer maps raw titles to base names. The zero value applies no
// prefix rewrite and strips the .docx extension.
type Normalizer struct {
	// Prefixes are tried in order; the first match wins.
	Prefixes []types.TaggedPrefix

	// Extension is the native extension removed wherever it appears in a
	// title. Defaults to ".docx".
	Extension string
}

// New returns a Normalizer for the given tagged prefixes.
func New(prefixes []types.TaggedPrefix) *Normalizer {
	return &Normalizer{Prefixes: prefixes, Extension: types.ExtDocx}
}

// Normalize returns the base name for title. The rules run in a fixed order:
// prefix rewrite, extension removal, leading separator trim, dash spacing,
// invalid character substitution, trademark removal, and a final trim.
// The result may be empty when the title holds nothing but separators.
func (n *Normalizer) Normalize(title string) string {
	name := n.rewritePrefix(title)

	ext := n.Extension
	if ext == "" {
		ext = types.ExtDocx
	}
	name = strings.ReplaceAll(name, ext, "")

	name = leadingSeparators.ReplaceAllString(name, "")
	name = spaceDashes(name)
	name = invalidChars.ReplaceAllString(name, "-")

	for _, tm := range trademarkForms {
		name = strings.ReplaceAll(name, tm, "")
	}

	return strings.TrimSpace(name)
}

// rewritePrefix formats "<prefix> rest" as "rest (<label>)" for the first
// matching tagged prefix. Titles without a match are returned unchanged.
func (n *Normalizer) rewritePrefix(title string) string {
	for _, p := range n.Prefixes {
		if p.Prefix == "" || !strings.HasPrefix(title, p.Prefix) {
			continue
		}
		rest := strings.TrimSpace(title[len(p.Prefix):])
		return rest + " (" + p.Label + ")"
	}
	return title
}

// spaceDashes rewrites each run of hyphens that is not already surrounded
// by whitespace as " - ", absorbing any whitespace on either side. A run at
// the start or end of the string counts as bounded on that side. Runs that
// are bounded on both sides are left exactly as written.
func spaceDashes(s string) string {
	matches := hyphenRun.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}

	out := make([]byte, 0, len(s)+8)
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		before := start == 0 || isSpace(s[start-1])
		after := end == len(s) || isSpace(s[end])
		if before && after {
			continue
		}

		out = bytes.TrimRight(append(out, s[last:start]...), spaceChars)
		out = append(out, " - "...)
		for end < len(s) && isSpace(s[end]) {
			end++
		}
		last = end
	}
	return string(append(out, s[last:]...))
}

// spaceChars is the ASCII whitespace set matched by \s.
const spaceChars = " \t\n\f\r"

func isSpace(c byte) bool {
	return strings.IndexByte(spaceChars, c) >= 0
}
