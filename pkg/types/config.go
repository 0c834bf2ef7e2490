package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citation-verifier/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ExtractionServiceConfig holds settings for the fulltext-extraction
// service boundary.
type ExtractionServiceConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the service root (e.g. "http://localhost:8070").
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// OracleConfig holds settings for the verification oracle.
type OracleConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the oracle model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates oracle calls.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the oracle endpoint; empty means the default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for rate-limited calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestsPerMinute caps outbound oracle calls across all sessions
	// (default 30).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	// DataDir is the base directory (contains documents/ and the index file).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// VerifierConfig holds settings for the verification session manager.
type VerifierConfig struct {
	// ReportsDir is where per-session YAML reports are written.
	ReportsDir string `json:"reports_dir" yaml:"reports_dir"`

	// Retention is how long terminal sessions are kept before sweeping
	// (default 24h). The audit row outlives the in-memory session.
	Retention time.Duration `json:"retention" yaml:"retention"`

	// MaxExcerptBytes caps the source-text excerpt sent to the oracle
	// per call (default 24576).
	MaxExcerptBytes int `json:"max_excerpt_bytes" yaml:"max_excerpt_bytes"`
}

// Config groups all component configurations. It is built once at startup
// and passed into each constructor.
type Config struct {
	Extraction ExtractionServiceConfig `json:"extraction" yaml:"extraction"`
	Oracle     OracleConfig            `json:"oracle" yaml:"oracle"`
	Store      StoreConfig             `json:"store" yaml:"store"`
	Verifier   VerifierConfig          `json:"verifier" yaml:"verifier"`
}
