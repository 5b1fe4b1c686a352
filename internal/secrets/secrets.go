// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads provider API keys from a directory holding one file
// per key. The file name is the key name and the trimmed file contents are
// the value, so a key can be dropped in with
//
//	echo "$KEY" > .secrets/openai-api-key
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// Key file names per enhancement provider.
const (
	KeyOpenAI    = "openai-api-key"
	KeyAnthropic = "anthropic-api-key"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty set. Files that cannot be read, or that other users can
// read, are reported through logger.Warn; the former are skipped.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return Secrets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := Secrets{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		if info, err := entry.Info(); err == nil && info.Mode().Perm()&0o077 != 0 {
			logger.Warn("secret %s is accessible to other users (mode %v)", path, info.Mode().Perm())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping secret %s: %v", name, err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			s[name] = v
		}
	}
	return s, nil
}

// Names returns the loaded key names in sorted order. Values are never
// exposed this way, which makes it safe for debug output.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// KeyFor returns the key file name holding the API key for provider.
// Unknown providers map to the OpenAI key.
func KeyFor(provider types.AIProvider) string {
	if provider == types.ProviderAnthropic {
		return KeyAnthropic
	}
	return KeyOpenAI
}

// APIKey returns the API key for provider, or "" if none was loaded.
func (s Secrets) APIKey(provider types.AIProvider) string {
	return s[KeyFor(provider)]
}
