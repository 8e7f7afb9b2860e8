// Package config manages global (~/.config/branchmind/config.toml) and
// per-project (.branchmind/config.toml) configuration for branchmind.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DirName is the per-project state directory.
const DirName = ".branchmind"

// Config holds every setting. The global file and the project file share
// this schema; keys present in the project file override the global ones.
type Config struct {
	DefaultEmbedder   string        `toml:"default_embedder"`
	DefaultSummarizer string        `toml:"default_summarizer"`
	Keys              KeysConfig    `toml:"keys"`
	Ollama            OllamaConfig  `toml:"ollama"`
	Engine            EngineConfig  `toml:"engine"`
	Cache             CacheConfig   `toml:"cache"`
	Summary           SummaryConfig `toml:"summary"`
	Gateway           GatewayConfig `toml:"gateway"`
	Server            ServerConfig  `toml:"server"`
	Project           ProjectMeta   `toml:"project"`
}

type KeysConfig struct {
	Anthropic string `toml:"anthropic"`
	OpenAI    string `toml:"openai"`
	Gemini    string `toml:"gemini"`
}

type OllamaConfig struct {
	Host            string `toml:"host"`
	EmbedModel      string `toml:"embed_model"`
	CompletionModel string `toml:"completion_model"`
}

// EngineConfig tunes the cross-reference pass.
type EngineConfig struct {
	DirectThreshold      float64 `toml:"direct_threshold"`
	VerySimilarThreshold float64 `toml:"very_similar_threshold"`
	MultiHopThreshold    float64 `toml:"multi_hop_threshold"`
	MaxDirect            int     `toml:"max_direct"`
	MaxCrossRefs         int     `toml:"max_cross_refs"`
}

// CacheConfig sizes the cache tiers.
type CacheConfig struct {
	EmbeddingLRUSize  int `toml:"embedding_lru_size"`
	SummaryTTLSeconds int `toml:"summary_ttl_seconds"`
	FormatCacheSize   int `toml:"format_cache_size"`
	MaxEmbedTokens    int `toml:"max_embed_tokens"`
	EmbedBatchSize    int `toml:"embed_batch_size"`
}

// SummaryTTL returns the summary TTL as a duration.
func (c CacheConfig) SummaryTTL() time.Duration {
	return time.Duration(c.SummaryTTLSeconds) * time.Second
}

// SummaryConfig bounds generated summaries.
type SummaryConfig struct {
	MinLength       int `toml:"min_length"`
	MaxLength       int `toml:"max_length"`
	MaxSourceTokens int `toml:"max_source_tokens"`
}

// GatewayConfig configures the circuit breaker around provider calls.
type GatewayConfig struct {
	BreakerMaxFailures    uint32 `toml:"breaker_max_failures"`
	BreakerTimeoutSeconds int    `toml:"breaker_timeout_seconds"`
}

// BreakerTimeout returns the open-state duration of the breaker.
func (g GatewayConfig) BreakerTimeout() time.Duration {
	return time.Duration(g.BreakerTimeoutSeconds) * time.Second
}

type ServerConfig struct {
	MetricsAddr string `toml:"metrics_addr"`
}

type ProjectMeta struct {
	Name string `toml:"name"`
}

// Default returns sensible defaults. The local provider works offline, so
// a fresh install needs no model host.
func Default() Config {
	return Config{
		DefaultEmbedder:   "local",
		DefaultSummarizer: "local",
		Ollama: OllamaConfig{
			Host:            "http://localhost:11434",
			EmbedModel:      "nomic-embed-text",
			CompletionModel: "llama3.2",
		},
		Engine: EngineConfig{
			DirectThreshold:      0.70,
			VerySimilarThreshold: 0.85,
			MultiHopThreshold:    0.50,
			MaxDirect:            3,
			MaxCrossRefs:         6,
		},
		Cache: CacheConfig{
			EmbeddingLRUSize:  1000,
			SummaryTTLSeconds: 600,
			FormatCacheSize:   256,
			MaxEmbedTokens:    512,
			EmbedBatchSize:    4,
		},
		Summary: SummaryConfig{
			MinLength:       30,
			MaxLength:       150,
			MaxSourceTokens: 3000,
		},
		Gateway: GatewayConfig{
			BreakerMaxFailures:    5,
			BreakerTimeoutSeconds: 30,
		},
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "branchmind", "config.toml"), nil
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, DirName, "config.toml")
}

// ProjectDBPath returns the path to the project's SQLite database.
func ProjectDBPath(root string) string {
	return filepath.Join(root, DirName, "branchmind.db")
}

// ProjectEmbeddingsPath returns the directory of the persistent embedding map.
func ProjectEmbeddingsPath(root string) string {
	return filepath.Join(root, DirName, "embeddings")
}

// ProjectConfigDirPath returns the path to the project's .branchmind/ directory.
func ProjectConfigDirPath(root string) string {
	return filepath.Join(root, DirName)
}

// decodeInto decodes path onto cfg. A missing file is not an error.
func decodeInto(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	return nil
}

// LoadGlobal loads the global config over the defaults.
func LoadGlobal() (Config, error) {
	cfg := Default()

	path, err := GlobalConfigPath()
	if err != nil {
		return cfg, nil // Return defaults if we can't determine home dir.
	}
	if err := decodeInto(path, &cfg); err != nil {
		return Default(), fmt.Errorf("config: load global: %w", err)
	}
	return cfg, nil
}

// Load returns the effective config for a project root: defaults, then the
// global file, then the project file, then environment overrides.
func Load(root string) (Config, error) {
	cfg, err := LoadGlobal()
	if err != nil {
		return cfg, err
	}
	if root != "" {
		if err := decodeInto(ProjectConfigPath(root), &cfg); err != nil {
			return cfg, fmt.Errorf("config: load project: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets env vars override config file API keys and the embedder.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}
	if v := os.Getenv("BRANCHMIND_EMBEDDER"); v != "" {
		cfg.DefaultEmbedder = v
	}
}

// APIKey returns the configured key for a provider, if any.
func (c Config) APIKey(provider string) string {
	switch provider {
	case "claude":
		return c.Keys.Anthropic
	case "openai":
		return c.Keys.OpenAI
	case "gemini":
		return c.Keys.Gemini
	}
	return ""
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg Config) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	return save(path, cfg)
}

// SaveProject writes the project config to .branchmind/config.toml.
func SaveProject(root string, cfg Config) error {
	return save(ProjectConfigPath(root), cfg)
}

func save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
