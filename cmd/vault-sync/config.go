// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/vault-sync/internal/filter"
	"github.com/pdiddy/vault-sync/internal/secrets"
	"github.com/pdiddy/vault-sync/pkg/types"
)

const envPrefix = "VAULT_SYNC"

// Configuration keys. Nested keys map to VAULT_SYNC_<SECTION>_<NAME>.
const (
	keyVaultDir          = "vault_dir"
	keyStagingDir        = "staging_dir"
	keyWorkers           = "workers"
	keyLedger            = "ledger.enabled"
	keyLedgerPath        = "ledger.path"
	keyFilterEnabled     = "filter.enabled"
	keyFilterPrefixes    = "filter.prefixes"
	keyTaggedPrefixes    = "naming.tagged_prefixes"
	keyCredentialsFile   = "drive.credentials_file"
	keyTokenFile         = "drive.token_file"
	keyPageSize          = "drive.page_size"
	keyRequestsPerSecond = "drive.requests_per_second"
	keyBackend           = "conversion.backend"
	keyPandocPath        = "conversion.pandoc_path"
	keyImage             = "conversion.image"
	keyRuntime           = "conversion.runtime"
	keyKeepStaged        = "conversion.keep_staged"
	keyEnhance           = "enhancement.enabled"
	keyProvider          = "enhancement.provider"
	keyModel             = "enhancement.model"
	keyAPIKey            = "enhancement.api_key"
	keyBaseURL           = "enhancement.base_url"
	keyMaxTokens         = "enhancement.max_tokens"
	keyTimeout           = "enhancement.timeout"
	keyMaxRetries        = "enhancement.max_retries"
	keyOpenAIKey         = "openai_api_key"
	keyAnthropicKey      = "anthropic_api_key"
)

// defaultVaultDir is ~/Documents/Obsidian.
var defaultVaultDir = filepath.Join("~", "Documents", "Obsidian")

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyVaultDir, defaultVaultDir)
	v.SetDefault(keyStagingDir, types.DefaultStagingDir)
	v.SetDefault(keyWorkers, 1)
	v.SetDefault(keyLedger, true)
	v.SetDefault(keyFilterEnabled, true)
	v.SetDefault(keyBackend, string(types.BackendPandoc))
	v.SetDefault(keyProvider, string(types.ProviderOpenAI))
	v.SetDefault(keyMaxTokens, types.DefaultMaxTokens)
	v.SetDefault(keyTimeout, types.DefaultEnhanceTimeout)
	v.SetDefault(keyMaxRetries, types.DefaultAIMaxRetries)
}

// bindEnv maps the environment variable names used before the VAULT_SYNC
// prefix existed. The prefixed name is listed first and wins.
func bindEnv(v *viper.Viper) {
	v.BindEnv(keyVaultDir, envPrefix+"_VAULT_DIR", "OBSIDIAN_VAULT_DIR")
	v.BindEnv(keyFilterEnabled, envPrefix+"_FILTER_ENABLED", "FILTER_BY_PREFIX")
	v.BindEnv(keyFilterPrefixes, envPrefix+"_FILTER_PREFIXES", "TITLE_PREFIXES")
	v.BindEnv(keyOpenAIKey, "OPENAI_API_KEY")
	v.BindEnv(keyAnthropicKey, "ANTHROPIC_API_KEY")
}

// buildConfig resolves the full configuration from v and the loaded secrets.
// Precedence: flags, environment, config file, secrets directory, defaults.
func buildConfig(v *viper.Viper, loaded secrets.Secrets) (types.Config, error) {
	vaultDir, err := expandHome(v.GetString(keyVaultDir))
	if err != nil {
		return types.Config{}, err
	}
	stagingDir, err := expandHome(v.GetString(keyStagingDir))
	if err != nil {
		return types.Config{}, err
	}

	cfg := types.Config{
		Drive: types.DriveConfig{
			CredentialsFile:   v.GetString(keyCredentialsFile),
			TokenFile:         v.GetString(keyTokenFile),
			PageSize:          v.GetInt64(keyPageSize),
			RequestsPerSecond: v.GetFloat64(keyRequestsPerSecond),
		},
		Filter: types.FilterConfig{
			Enabled:  v.GetBool(keyFilterEnabled),
			Prefixes: stringList(v, keyFilterPrefixes),
		},
		Acquisition: types.AcquisitionConfig{StagingDir: stagingDir},
		Conversion: types.ConversionConfig{
			Backend:    types.ConversionBackend(v.GetString(keyBackend)),
			PandocPath: v.GetString(keyPandocPath),
			Image:      v.GetString(keyImage),
			Runtime:    v.GetString(keyRuntime),
			KeepStaged: v.GetBool(keyKeepStaged),
		},
		Enhancement: types.EnhancementConfig{
			AIConfig: types.AIConfig{
				Provider:   types.AIProvider(v.GetString(keyProvider)),
				Model:      v.GetString(keyModel),
				BaseURL:    v.GetString(keyBaseURL),
				MaxRetries: v.GetInt(keyMaxRetries),
			},
			Enabled:   v.GetBool(keyEnhance),
			MaxTokens: v.GetInt(keyMaxTokens),
			Timeout:   v.GetDuration(keyTimeout),
		},
		Vault:   types.VaultConfig{Dir: vaultDir},
		Workers: v.GetInt(keyWorkers),
	}

	if v.IsSet(keyTaggedPrefixes) {
		if err := v.UnmarshalKey(keyTaggedPrefixes, &cfg.Naming.TaggedPrefixes); err != nil {
			return types.Config{}, fmt.Errorf("parsing %s: %w", keyTaggedPrefixes, err)
		}
	}

	cfg.ApplyDefaults()
	cfg.Enhancement.APIKey = resolveAPIKey(v, loaded, cfg.Enhancement.Provider)

	if v.GetBool(keyLedger) {
		cfg.LedgerPath = v.GetString(keyLedgerPath)
		if cfg.LedgerPath == "" {
			cfg.LedgerPath = filepath.Join(cfg.Acquisition.StagingDir, types.DefaultLedgerFileName)
		}
	}

	if cfg.Drive.TokenFile == "" {
		if dir, err := configDir(); err == nil {
			cfg.Drive.TokenFile = filepath.Join(dir, types.DefaultTokenFileName)
		} else {
			cfg.Drive.TokenFile = types.DefaultTokenFileName
		}
	}
	if cfg.Drive.CredentialsFile, err = expandHome(cfg.Drive.CredentialsFile); err != nil {
		return types.Config{}, err
	}
	if cfg.Drive.TokenFile, err = expandHome(cfg.Drive.TokenFile); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// resolveAPIKey picks the enhancement key: an explicit enhancement.api_key,
// then the provider's environment variable, then the secrets directory.
func resolveAPIKey(v *viper.Viper, loaded secrets.Secrets, provider types.AIProvider) string {
	if k := v.GetString(keyAPIKey); k != "" {
		return k
	}
	envKey := keyOpenAIKey
	if provider == types.ProviderAnthropic {
		envKey = keyAnthropicKey
	}
	if k := v.GetString(envKey); k != "" {
		return k
	}
	return loaded.APIKey(provider)
}

// stringList reads key as a list. A plain string, as set from the
// environment, is split on commas so prefixes may contain spaces.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return filter.ParsePrefixes(s)
	}
	return v.GetStringSlice(key)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// loadConfig builds and validates the configuration from the global viper.
func loadConfig() (types.Config, error) {
	cfg, err := buildConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
