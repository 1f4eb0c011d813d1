// Package config provides the configuration schema and loader for the mnemo
// server.
package config

import (
	"time"

	"github.com/mnemo-app/mnemo/internal/backfill"
	"github.com/mnemo-app/mnemo/internal/media"
	"github.com/mnemo-app/mnemo/internal/search"
	"github.com/mnemo-app/mnemo/internal/tagging"
	"github.com/mnemo-app/mnemo/pkg/vector"
)

// LogLevel controls log verbosity for the mnemo server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for mnemo.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Search    SearchConfig    `yaml:"search"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Media     MediaConfig     `yaml:"media"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on. Empty disables the metrics listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string. Supports ${VAR} expansion
	// from the environment.
	DSN string `yaml:"dsn"`

	// EmbeddingDimensions is the vector column width. Defaults to 1536.
	// Changing it on an existing database requires a manual migration.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// AIConfig holds deployment-level AI settings.
type AIConfig struct {
	// DefaultOpenAIAPIKey serves owners who enabled OpenAI without saving
	// their own key, and owners with no settings. Empty means such owners
	// have no AI features. Supports ${VAR} expansion.
	DefaultOpenAIAPIKey string `yaml:"default_openai_api_key"`

	// OwnerID is the journal owner the MCP stdio server operates as.
	// Defaults to "local".
	OwnerID string `yaml:"owner_id"`
}

// SearchConfig tunes semantic search ranking.
type SearchConfig struct {
	// MinSimilarity excludes matches scoring below it. Defaults to 0.3.
	MinSimilarity float64 `yaml:"min_similarity"`

	// MaxResults caps the result set. Defaults to 20.
	MaxResults int `yaml:"max_results"`
}

// BackfillConfig tunes embedding backfill.
type BackfillConfig struct {
	// BatchSize bounds how many memories one backfill round embeds.
	// Defaults to 25.
	BatchSize int `yaml:"batch_size"`
}

// DiscoveryConfig tunes tag discovery.
type DiscoveryConfig struct {
	// SampleSize is how many recent memories one discovery run offers to
	// the model. Defaults to 30.
	SampleSize int `yaml:"sample_size"`
}

// MediaConfig holds S3-compatible object storage settings for media URL
// signing. Leaving Endpoint empty disables signing; memories then carry
// media attachments without URLs.
type MediaConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`

	// URLTTLSeconds is how long signed URLs stay valid. Defaults to 3600.
	URLTTLSeconds int `yaml:"url_ttl_seconds"`
}

// URLTTL returns the signed URL lifetime as a duration.
func (m MediaConfig) URLTTL() time.Duration {
	return time.Duration(m.URLTTLSeconds) * time.Second
}

// applyDefaults fills unset fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Database.EmbeddingDimensions == 0 {
		c.Database.EmbeddingDimensions = vector.DefaultDimensions
	}
	if c.AI.OwnerID == "" {
		c.AI.OwnerID = "local"
	}
	if c.Search.MinSimilarity == 0 {
		c.Search.MinSimilarity = search.DefaultMinSimilarity
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = search.DefaultMaxResults
	}
	if c.Backfill.BatchSize == 0 {
		c.Backfill.BatchSize = backfill.DefaultBatchSize
	}
	if c.Discovery.SampleSize == 0 {
		c.Discovery.SampleSize = tagging.DefaultSampleSize
	}
	if c.Media.URLTTLSeconds == 0 {
		c.Media.URLTTLSeconds = int(media.DefaultURLTTL / time.Second)
	}
}
