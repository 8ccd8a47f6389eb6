package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration for one channel
type Config struct {
	Provider  string
	BaseURL   string // Ollama instance URL
	APIKey    string // OpenAI key
	Model     string
	Dimension int
}

// New creates a single-channel embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimension), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey)
	case ProviderLocal, "":
		return NewLocalProvider(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewDual builds a DualEmbedder from per-channel configs and a shared cache
// size.
func NewDual(textCfg, codeCfg Config, cacheSize int) (*DualEmbedder, error) {
	text, err := New(textCfg)
	if err != nil {
		return nil, fmt.Errorf("text channel: %w", err)
	}
	code, err := New(codeCfg)
	if err != nil {
		_ = text.Close()
		return nil, fmt.Errorf("code channel: %w", err)
	}
	return NewDualEmbedder(text, code, NewCache(cacheSize)), nil
}

// NewFromEnv creates a dual embedder from environment variables.
// Priority:
// 1. REPOSCOPE_EMBEDDING_PROVIDER (ollama, openai, local)
// 2. OPENAI_API_KEY presence selects openai
// 3. Default to ollama when an instance URL is set, local otherwise
func NewFromEnv() (*DualEmbedder, error) {
	provider := strings.ToLower(os.Getenv("REPOSCOPE_EMBEDDING_PROVIDER"))
	openaiKey := os.Getenv("OPENAI_API_KEY")
	ollamaURL := os.Getenv("REPOSCOPE_OLLAMA_URL")

	if provider == "" {
		switch {
		case openaiKey != "":
			provider = ProviderOpenAI
		case ollamaURL != "":
			provider = ProviderOllama
		default:
			provider = ProviderLocal
		}
	}

	cfg := Config{
		Provider: provider,
		BaseURL:  ollamaURL,
		APIKey:   openaiKey,
	}
	textCfg := cfg
	textCfg.Model = os.Getenv("REPOSCOPE_TEXT_MODEL")
	codeCfg := cfg
	codeCfg.Model = os.Getenv("REPOSCOPE_CODE_MODEL")

	return NewDual(textCfg, codeCfg, DefaultCacheSize)
}

// DetectProvider returns the provider NewFromEnv would choose.
func DetectProvider() string {
	if provider := os.Getenv("REPOSCOPE_EMBEDDING_PROVIDER"); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	if os.Getenv("REPOSCOPE_OLLAMA_URL") != "" {
		return ProviderOllama
	}
	return ProviderLocal
}
