package types

import (
	"fmt"
	"time"
)

// DriveConfig holds settings for the remote lister and downloader.
type DriveConfig struct {
	// CredentialsFile is the OAuth client secret JSON downloaded from the
	// Google Cloud console.
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`

	// TokenFile caches the OAuth token between runs.
	TokenFile string `json:"token_file" yaml:"token_file"`

	// PageSize is the number of files requested per list page (default 100).
	PageSize int64 `json:"page_size" yaml:"page_size"`

	// RequestsPerSecond caps the rate of Drive API calls (default 8).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// FilterConfig controls the title prefix filter.
type FilterConfig struct {
	// Enabled turns prefix filtering on. When false every listed document
	// is processed.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Prefixes lists the accepted title prefixes.
	Prefixes []string `json:"prefixes" yaml:"prefixes"`
}

// TaggedPrefix maps a title prefix to the short type label appended to the
// normalized name (e.g. "Transcript:" -> "Transcript").
type TaggedPrefix struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Label  string `json:"label" yaml:"label"`
}

// NamingConfig holds settings for the name normalizer.
type NamingConfig struct {
	// TaggedPrefixes are tried in order; only the first match is applied.
	TaggedPrefixes []TaggedPrefix `json:"tagged_prefixes" yaml:"tagged_prefixes"`
}

// AcquisitionConfig holds settings for the download stage.
type AcquisitionConfig struct {
	// StagingDir holds downloaded .docx files and intermediate Markdown.
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`
}

// ConversionBackend identifies how pandoc is run.
type ConversionBackend string

const (
	// BackendPandoc runs a pandoc binary from PATH.
	BackendPandoc ConversionBackend = "pandoc"
	// BackendContainer runs pandoc inside a docker or podman container.
	BackendContainer ConversionBackend = "container"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects pandoc or container.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// PandocPath overrides the pandoc binary (default "pandoc").
	PandocPath string `json:"pandoc_path" yaml:"pandoc_path"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image"`

	// Runtime forces "docker" or "podman" for the container backend. Empty
	// picks whichever is usable, docker first.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// KeepStaged keeps the .docx file after a successful conversion.
	KeepStaged bool `json:"keep_staged" yaml:"keep_staged"`
}

// AIProvider identifies the text-completion API used by the enhancer.
type AIProvider string

const (
	ProviderOpenAI    AIProvider = "openai"
	ProviderAnthropic AIProvider = "anthropic"
)

// AIConfig holds shared settings for calling a Generative AI API.
type AIConfig struct {
	// Provider selects openai or anthropic.
	Provider AIProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "gpt-4o").
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the API root for OpenAI-compatible servers, or the
	// full Messages endpoint for Anthropic.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// EnhancementConfig holds settings for the optional formatting pass.
type EnhancementConfig struct {
	AIConfig `yaml:",inline"`

	// Enabled turns the enhancer on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxTokens is the output token ceiling (default 13000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single completion request (default 5m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// VaultConfig holds settings for the placement stage.
type VaultConfig struct {
	// Dir is the destination vault directory. It must already exist.
	Dir string `json:"dir" yaml:"dir"`
}

// Config groups all stage configurations. It is built once at startup and
// passed to every stage.
type Config struct {
	Drive       DriveConfig       `json:"drive" yaml:"drive"`
	Filter      FilterConfig      `json:"filter" yaml:"filter"`
	Naming      NamingConfig      `json:"naming" yaml:"naming"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Conversion  ConversionConfig  `json:"conversion" yaml:"conversion"`
	Enhancement EnhancementConfig `json:"enhancement" yaml:"enhancement"`
	Vault       VaultConfig       `json:"vault" yaml:"vault"`

	// Workers bounds the number of documents processed concurrently
	// (default 1, fully sequential).
	Workers int `json:"workers" yaml:"workers"`

	// LedgerPath is the SQLite placement ledger. Empty disables it.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`
}

// DefaultTaggedPrefixes are the prefixes the meeting tools put on their
// documents.
var DefaultTaggedPrefixes = []TaggedPrefix{
	{Prefix: "Transcript:", Label: "Transcript"},
	{Prefix: "AI Notes", Label: "AI Notes"},
}

// DefaultFilterPrefixes are the title prefixes synced when filtering is on.
var DefaultFilterPrefixes = []string{"Transcript:", "AI Notes"}

// Default values applied by ApplyDefaults.
const (
	DefaultStagingDir      = "./downloads"
	DefaultPageSize        = 100
	DefaultRequestsPerSec  = 8.0
	DefaultPandocImage     = "pandoc/core:latest"
	DefaultOpenAIModel     = "gpt-4o"
	DefaultAnthropicModel  = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens       = 13000
	DefaultEnhanceTimeout  = 5 * time.Minute
	DefaultAIMaxRetries    = 3
	DefaultLedgerFileName  = "vault-sync.db"
	DefaultTokenFileName   = "token.json"
	DefaultCredentialsFile = "credentials.json"
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Acquisition.StagingDir == "" {
		c.Acquisition.StagingDir = DefaultStagingDir
	}
	if c.Drive.PageSize <= 0 {
		c.Drive.PageSize = DefaultPageSize
	}
	if c.Drive.RequestsPerSecond <= 0 {
		c.Drive.RequestsPerSecond = DefaultRequestsPerSec
	}
	if c.Drive.CredentialsFile == "" {
		c.Drive.CredentialsFile = DefaultCredentialsFile
	}
	if len(c.Naming.TaggedPrefixes) == 0 {
		c.Naming.TaggedPrefixes = DefaultTaggedPrefixes
	}
	if c.Filter.Enabled && len(c.Filter.Prefixes) == 0 {
		c.Filter.Prefixes = DefaultFilterPrefixes
	}
	if c.Conversion.Backend == "" {
		c.Conversion.Backend = BackendPandoc
	}
	if c.Conversion.PandocPath == "" {
		c.Conversion.PandocPath = "pandoc"
	}
	if c.Conversion.Image == "" {
		c.Conversion.Image = DefaultPandocImage
	}
	if c.Enhancement.Provider == "" {
		c.Enhancement.Provider = ProviderOpenAI
	}
	if c.Enhancement.Model == "" {
		if c.Enhancement.Provider == ProviderAnthropic {
			c.Enhancement.Model = DefaultAnthropicModel
		} else {
			c.Enhancement.Model = DefaultOpenAIModel
		}
	}
	if c.Enhancement.MaxTokens <= 0 {
		c.Enhancement.MaxTokens = DefaultMaxTokens
	}
	if c.Enhancement.Timeout <= 0 {
		c.Enhancement.Timeout = DefaultEnhanceTimeout
	}
	if c.Enhancement.MaxRetries <= 0 {
		c.Enhancement.MaxRetries = DefaultAIMaxRetries
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// Validate reports configuration errors that make a run impossible.
func (c *Config) Validate() error {
	if c.Vault.Dir == "" {
		return fmt.Errorf("vault directory is not configured")
	}
	switch c.Conversion.Backend {
	case BackendPandoc, BackendContainer:
	default:
		return fmt.Errorf("unknown conversion backend %q", c.Conversion.Backend)
	}
	if c.Enhancement.Enabled {
		switch c.Enhancement.Provider {
		case ProviderOpenAI, ProviderAnthropic:
		default:
			return fmt.Errorf("unknown enhancement provider %q", c.Enhancement.Provider)
		}
		if c.Enhancement.APIKey == "" {
			return fmt.Errorf("enhancement enabled but no %s API key configured", c.Enhancement.Provider)
		}
	}
	return nil
}
