package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reposcope/reposcope/internal/cache"
	"github.com/reposcope/reposcope/internal/config"
	"github.com/reposcope/reposcope/internal/embedder"
	"github.com/reposcope/reposcope/internal/indexer"
	"github.com/reposcope/reposcope/internal/searcher"
	"github.com/reposcope/reposcope/internal/storage"
)

var (
	flagConfigDir  string
	flagDBPath     string
	flagRepository string
)

var rootCmd = &cobra.Command{
	Use:   "reposcope",
	Short: "Code indexing and retrieval: hybrid search plus a dependency graph",
	Long: `reposcope indexes source repositories into SQLite and serves hybrid
trigram + vector search, dependency-graph traversal, and an MCP tool
surface over the same index.`,
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (built %s, driver %s, vector extension %v)", version, buildTime, storage.DriverName, storage.VectorExtensionAvailable),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "directory holding reposcope.yaml (default: . and ~/.reposcope)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagRepository, "repository", "r", "", "repository name")
}

// app bundles the wired components behind the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *storage.SQLiteStorage
	embedder *embedder.DualEmbedder
	cache    *cache.Manager
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// newApp loads configuration and constructs the component stack.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return nil, err
	}
	if flagDBPath != "" {
		cfg.Database.Path = flagDBPath
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	channelCfg := embedder.Config{
		Provider:  cfg.Embedding.Provider,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}
	textCfg := channelCfg
	textCfg.Model = cfg.Embedding.TextModel
	codeCfg := channelCfg
	codeCfg.Model = cfg.Embedding.CodeModel
	dual, err := embedder.NewDual(textCfg, codeCfg, cfg.Embedding.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	shared := cache.NewMemorySharedCache(cfg.Cache.SharedCapacity, time.Duration(cfg.Cache.SharedTTLSecs)*time.Second)
	manager := cache.NewManager(cfg.Cache.LocalCapacity, shared, time.Duration(cfg.Cache.SharedTTLSecs)*time.Second, logger)

	idx := indexer.New(store, dual, manager, logger, &indexer.Config{
		Workers:     cfg.Indexer.Workers,
		MaxFileSize: cfg.Indexer.MaxFileSize,
		ExcludeDirs: cfg.Indexer.ExcludeDirs,
	})
	srch := searcher.New(store, dual, manager, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		embedder: dual,
		cache:    manager,
		indexer:  idx,
		searcher: srch,
	}, nil
}

func (a *app) Close() {
	a.cache.Close()
	_ = a.embedder.Close()
	_ = a.store.Close()
	_ = a.logger.Sync()
}

// repositoryName resolves the repository flag, falling back to the base
// name of the given path.
func repositoryName(path string) string {
	if flagRepository != "" {
		return flagRepository
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.Base(abs)
}

// buildLogger writes to stderr so stdout stays free for command output and
// the MCP transport.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	return zapCfg.Build()
}
