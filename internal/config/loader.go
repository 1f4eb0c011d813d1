package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, expands ${VAR} references
// from the environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("database.embedding_dimensions %d must be positive", cfg.Database.EmbeddingDimensions))
	}

	if cfg.Search.MinSimilarity < 0 || cfg.Search.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("search.min_similarity %.2f is out of range [0, 1]", cfg.Search.MinSimilarity))
	}
	if cfg.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results %d must be positive", cfg.Search.MaxResults))
	}
	if cfg.Backfill.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("backfill.batch_size %d must be positive", cfg.Backfill.BatchSize))
	}
	if cfg.Discovery.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("discovery.sample_size %d must be positive", cfg.Discovery.SampleSize))
	}

	if cfg.Media.Endpoint != "" && cfg.Media.Bucket == "" {
		errs = append(errs, errors.New("media.bucket is required when media.endpoint is set"))
	}
	if cfg.Media.URLTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("media.url_ttl_seconds %d must be positive", cfg.Media.URLTTLSeconds))
	}

	return errors.Join(errs...)
}
