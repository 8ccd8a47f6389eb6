// Package config loads and validates application configuration. Values come
// from an optional YAML file, overridden by REPOSCOPE_-prefixed environment
// variables; absent both, the defaults stand.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig locates the SQLite index database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// IndexerConfig tunes the indexing pipeline.
type IndexerConfig struct {
	Workers     int      `mapstructure:"workers"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
}

// EmbeddingConfig selects the embedding backend for both channels.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // ollama, openai, local
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TextModel string `mapstructure:"text_model"`
	CodeModel string `mapstructure:"code_model"`
	Dimension int    `mapstructure:"dimension"`
	CacheSize int    `mapstructure:"cache_size"`
}

// CacheConfig sizes the result cache tiers.
type CacheConfig struct {
	LocalCapacity  int `mapstructure:"local_capacity"`
	SharedCapacity int `mapstructure:"shared_capacity"`
	SharedTTLSecs  int `mapstructure:"shared_ttl_seconds"`
}

// SearchConfig sets retrieval defaults.
type SearchConfig struct {
	DefaultLimit int     `mapstructure:"default_limit"`
	RRFConstant  float64 `mapstructure:"rrf_constant"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".reposcope", "reposcope.db"),
		},
		Indexer: IndexerConfig{
			Workers:     runtime.NumCPU(),
			MaxFileSize: 1 << 20,
			ExcludeDirs: []string{},
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			CacheSize: 10000,
		},
		Cache: CacheConfig{
			LocalCapacity:  4096,
			SharedCapacity: 16384,
			SharedTTLSecs:  600,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			RRFConstant:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from an optional reposcope.yaml in configDir
// (or the working directory and ~/.reposcope when configDir is empty),
// applies REPOSCOPE_ environment overrides, and validates the result.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("indexer.workers", defaults.Indexer.Workers)
	v.SetDefault("indexer.max_file_size", defaults.Indexer.MaxFileSize)
	v.SetDefault("indexer.exclude_dirs", defaults.Indexer.ExcludeDirs)
	v.SetDefault("embedding.provider", defaults.Embedding.Provider)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.text_model", "")
	v.SetDefault("embedding.code_model", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_size", defaults.Embedding.CacheSize)
	v.SetDefault("cache.local_capacity", defaults.Cache.LocalCapacity)
	v.SetDefault("cache.shared_capacity", defaults.Cache.SharedCapacity)
	v.SetDefault("cache.shared_ttl_seconds", defaults.Cache.SharedTTLSecs)
	v.SetDefault("search.default_limit", defaults.Search.DefaultLimit)
	v.SetDefault("search.rrf_constant", defaults.Search.RRFConstant)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetConfigName("reposcope")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".reposcope"))
		}
	}

	v.SetEnvPrefix("REPOSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}
	if c.Indexer.Workers < 0 {
		return errors.New("indexer.workers cannot be negative")
	}
	if c.Indexer.MaxFileSize < 0 {
		return errors.New("indexer.max_file_size cannot be negative")
	}
	switch c.Embedding.Provider {
	case "", "ollama", "openai", "local":
	default:
		return fmt.Errorf("embedding.provider must be ollama, openai, or local, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return errors.New("embedding.dimension cannot be negative")
	}
	if c.Cache.LocalCapacity <= 0 {
		return errors.New("cache.local_capacity must be positive")
	}
	if c.Cache.SharedTTLSecs < 0 {
		return errors.New("cache.shared_ttl_seconds cannot be negative")
	}
	if c.Search.DefaultLimit <= 0 {
		return errors.New("search.default_limit must be positive")
	}
	if c.Search.RRFConstant <= 0 {
		return errors.New("search.rrf_constant must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
