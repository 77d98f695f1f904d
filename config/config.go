package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for finrag.
type Config struct {
	Data      DataConfig      `yaml:"data" toml:"data"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve" toml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Source    SourceConfig    `yaml:"source" toml:"source"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// DataConfig holds the locations of raw and processed data.
type DataConfig struct {
	RawDir       string   `yaml:"raw_dir" toml:"raw_dir"`
	ProcessedDir string   `yaml:"processed_dir" toml:"processed_dir"`
	ArtifactFile string   `yaml:"artifact_file" toml:"artifact_file"`
	Tickers      []string `yaml:"tickers" toml:"tickers"`
}

// ChunkingConfig holds word-window chunking configuration.
type ChunkingConfig struct {
	Size    int `yaml:"size" toml:"size"`       // words per chunk
	Overlap int `yaml:"overlap" toml:"overlap"` // words shared with the previous chunk
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider" toml:"provider"` // "local", "openai", "ollama"
	Model        string `yaml:"model" toml:"model"` // empty = provider default
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env" toml:"api_key_env"` // Environment variable for API key
	Dimension    int    `yaml:"dimension" toml:"dimension"`     // 0 = known width of the model, 384 for local`
	BatchSize    int    `yaml:"batch_size" toml:"batch_size"`
	MaxRetries   int    `yaml:"max_retries" toml:"max_retries"`
	RetryDelayMS int    `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Backend    string `yaml:"backend" toml:"backend"` // "bolt", "sqlite", "memory"
	Dir        string `yaml:"dir" toml:"dir"`
	Collection string `yaml:"collection" toml:"collection"`
	BatchSize  int    `yaml:"batch_size" toml:"batch_size"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k" toml:"top_k"`
	MMREnabled        bool    `yaml:"mmr_enabled" toml:"mmr_enabled"`
	MMRLambda         float64 `yaml:"mmr_lambda" toml:"mmr_lambda"`
	DedupJaccard      float64 `yaml:"dedup_jaccard" toml:"dedup_jaccard"`
	MinScoreThreshold float64 `yaml:"min_score_threshold" toml:"min_score_threshold"` // Filter results below this score (0 = disabled)
	CacheSize         int     `yaml:"cache_size" toml:"cache_size"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
}

// LLMConfig holds text generator configuration.
type LLMConfig struct {
	Provider       string  `yaml:"provider" toml:"provider"` // "groq", "openai", "ollama"
	Model          string  `yaml:"model" toml:"model"`
	BaseURL        string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env" toml:"api_key_env"`
	Temperature    float32 `yaml:"temperature" toml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" toml:"max_tokens"`
	MaxRetries     int     `yaml:"max_retries" toml:"max_retries"`
	RetryDelayMS   int     `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// SourceConfig selects and configures the document source.
type SourceConfig struct {
	Kind              string  `yaml:"kind" toml:"kind"`                 // "synthetic", "cache", "live"
	URLTemplate       string  `yaml:"url_template" toml:"url_template"` // e.g. "https://example.com/stocks/{ticker}"
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries"`
	RetryDelayMS      int     `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			RawDir:       filepath.Join("data", "raw"),
			ProcessedDir: filepath.Join("data", "processed"),
			ArtifactFile: "all_chunks.json",
			Tickers:      []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "JPM", "V", "JNJ"},
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:     "local",
			APIKeyEnv:    "OPENAI_API_KEY",
			BatchSize:    32,
			MaxRetries:   3,
			RetryDelayMS: 1000,
		},
		Index: IndexConfig{
			Backend:    "bolt",
			Dir:        ".finrag",
			Collection: "financial_documents",
			BatchSize:  100,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			MMREnabled:      false,
			MMRLambda:       0.7,
			DedupJaccard:    0.8,
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		LLM: LLMConfig{
			Provider:       "groq",
			Model:          "llama-3.1-8b-instant",
			APIKeyEnv:      "GROQ_API_KEY",
			Temperature:    0.7,
			MaxTokens:      1024,
			MaxRetries:     3,
			RetryDelayMS:   2000,
			TimeoutSeconds: 120,
		},
		Source: SourceConfig{
			Kind:              "cache",
			APIKeyEnv:         "FINRAG_SOURCE_API_KEY",
			RequestsPerSecond: 0.5,
			Burst:             1,
			MaxRetries:        3,
			RetryDelayMS:      2000,
		},
	}
}

// Load loads configuration from a YAML file, or TOML when the file name
// ends in .toml. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads finrag.yaml, finrag.toml or .finrag/config.yaml from
// dir, in that order, falling back to the defaults.
func LoadFromDir(dir string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, "finrag.yaml"),
		filepath.Join(dir, "finrag.toml"),
		filepath.Join(ConfigDir(dir), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Save saves configuration as YAML, or TOML when path ends in .toml.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Chunking.Overlap < 0 || c.Chunking.Size <= c.Chunking.Overlap {
		return fmt.Errorf("chunking.size (%d) must exceed chunking.overlap (%d) and overlap must not be negative",
			c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if err := oneOf("embedding.provider", c.Embedding.Provider, "local", "openai", "ollama"); err != nil {
		return err
	}
	if err := oneOf("index.backend", c.Index.Backend, "bolt", "sqlite", "memory"); err != nil {
		return err
	}
	if err := oneOf("llm.provider", c.LLM.Provider, "groq", "openai", "ollama"); err != nil {
		return err
	}
	return oneOf("source.kind", c.Source.Kind, "synthetic", "cache", "live")
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// ApplyEnv applies the USE_OLLAMA and OLLAMA_MODEL environment switches.
func (c *Config) ApplyEnv() {
	if strings.EqualFold(os.Getenv("USE_OLLAMA"), "true") {
		c.LLM.Provider = "ollama"
		c.LLM.Model = "llama2"
		if m := os.Getenv("OLLAMA_MODEL"); m != "" {
			c.LLM.Model = m
		}
	}
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// IndexDir returns the vector index directory relative to dir.
func (c *Config) IndexDir(dir string) string {
	return resolve(dir, c.Index.Dir)
}

// RawDir returns the raw data directory relative to dir.
func (c *Config) RawDir(dir string) string {
	return resolve(dir, c.Data.RawDir)
}

// ArtifactPath returns the processed chunk artifact path relative to dir.
func (c *Config) ArtifactPath(dir string) string {
	return filepath.Join(resolve(dir, c.Data.ProcessedDir), c.Data.ArtifactFile)
}

// EmbeddingRetryDelay returns the base backoff for embedding requests.
func (c *Config) EmbeddingRetryDelay() time.Duration {
	return time.Duration(c.Embedding.RetryDelayMS) * time.Millisecond
}

// LLMRetryDelay returns the base backoff for chat completions.
func (c *Config) LLMRetryDelay() time.Duration {
	return time.Duration(c.LLM.RetryDelayMS) * time.Millisecond
}

// SourceRetryDelay returns the base backoff for live source requests.
func (c *Config) SourceRetryDelay() time.Duration {
	return time.Duration(c.Source.RetryDelayMS) * time.Millisecond
}

// CacheTTL returns the query cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Retrieve.CacheTTLSeconds) * time.Second
}

// ConfigDir returns the directory holding the local config file.
func ConfigDir(dir string) string {
	return filepath.Join(dir, ".finrag")
}
