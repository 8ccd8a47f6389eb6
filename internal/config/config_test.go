package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Path)
	assert.Greater(t, cfg.Indexer.Workers, 0)
	assert.Equal(t, int64(1<<20), cfg.Indexer.MaxFileSize)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 4096, cfg.Cache.LocalCapacity)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 60.0, cfg.Search.RRFConstant)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  path: /tmp/custom.db
indexer:
  workers: 3
embedding:
  provider: ollama
  base_url: http://embedder:11434
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reposcope.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Indexer.Workers)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "http://embedder:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Unset keys keep their defaults
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REPOSCOPE_EMBEDDING_PROVIDER", "openai")
	t.Setenv("REPOSCOPE_SEARCH_DEFAULT_LIMIT", "25")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	content := "embedding:\n  provider: quantum\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reposcope.yaml"), []byte(content), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"negative workers", func(c *Config) { c.Indexer.Workers = -1 }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "quantum" }},
		{"zero local capacity", func(c *Config) { c.Cache.LocalCapacity = 0 }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
