package config

import (
	"os"
	"strings"
	"testing"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

const minimalYAML = `
database:
  dsn: postgres://mnemo@localhost/mnemo
`

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level default: got %q", cfg.Server.LogLevel)
	}
	if cfg.Database.EmbeddingDimensions != 1536 {
		t.Errorf("embedding_dimensions default: got %d", cfg.Database.EmbeddingDimensions)
	}
	if cfg.AI.OwnerID != "local" {
		t.Errorf("owner_id default: got %q", cfg.AI.OwnerID)
	}
	if cfg.Search.MinSimilarity != 0.3 || cfg.Search.MaxResults != 20 {
		t.Errorf("search defaults: got %+v", cfg.Search)
	}
	if cfg.Backfill.BatchSize != 25 {
		t.Errorf("batch_size default: got %d", cfg.Backfill.BatchSize)
	}
	if cfg.Discovery.SampleSize != 30 {
		t.Errorf("sample_size default: got %d", cfg.Discovery.SampleSize)
	}
	if cfg.Media.URLTTLSeconds != 3600 {
		t.Errorf("url_ttl_seconds default: got %d", cfg.Media.URLTTLSeconds)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	yml := `
server:
  log_level: debug
  metrics_addr: ":9090"
database:
  dsn: postgres://mnemo@db/mnemo
  embedding_dimensions: 768
ai:
  default_openai_api_key: sk-deployment
  owner_id: alice
search:
  min_similarity: 0.5
  max_results: 10
backfill:
  batch_size: 50
discovery:
  sample_size: 15
media:
  endpoint: minio:9000
  access_key: minioadmin
  secret_key: minioadmin
  bucket: mnemo-media
  url_ttl_seconds: 600
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("metrics_addr: got %q", cfg.Server.MetricsAddr)
	}
	if cfg.Database.EmbeddingDimensions != 768 {
		t.Errorf("embedding_dimensions: got %d", cfg.Database.EmbeddingDimensions)
	}
	if cfg.Search.MinSimilarity != 0.5 || cfg.Search.MaxResults != 10 {
		t.Errorf("search: got %+v", cfg.Search)
	}
	if cfg.Media.URLTTL().Seconds() != 600 {
		t.Errorf("url ttl: got %v", cfg.Media.URLTTL())
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yml := minimalYAML + `
serverr:
  log_level: debug
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("want error for unknown field")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	yml := `
server:
  log_level: loud
database:
  dsn: ""
search:
  min_similarity: 1.5
media:
  endpoint: minio:9000
`
	_, err := LoadFromReader(strings.NewReader(yml))
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"log_level", "database.dsn", "min_similarity", "media.bucket"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_MNEMO_DSN", "postgres://fromenv@db/mnemo")

	path := t.TempDir() + "/config.yaml"
	yml := "database:\n  dsn: ${TEST_MNEMO_DSN}\n"
	if err := writeFile(path, yml); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://fromenv@db/mnemo" {
		t.Errorf("dsn: got %q", cfg.Database.DSN)
	}
}
