package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Levels are separated by a double
// underscore: DOCRAG_CHUNKER__CHUNK_SIZE sets chunker.chunk_size.
const EnvPrefix = "DOCRAG_"

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NormalizerConfig configures text normalization.
type NormalizerConfig struct {
	StripDiacritics bool `yaml:"strip_diacritics"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Style             string  `yaml:"style"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string               `yaml:"type"`
	Dimension int                  `yaml:"dimension"`
	CacheSize int                  `yaml:"cache_size"`
	OpenAI    OpenAIEmbedderConfig `yaml:"openai"`
}

// ChromemConfig configures the embedded chromem vector database.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Compress   bool   `yaml:"compress"`
	Collection string `yaml:"collection"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type           string        `yaml:"type"`
	MatchThreshold float32       `yaml:"match_threshold"`
	Chromem        ChromemConfig `yaml:"chromem"`
	Qdrant         QdrantConfig  `yaml:"qdrant"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit    int  `yaml:"default_limit"`
	Strict          bool `yaml:"strict"`
	UseLLM          bool `yaml:"use_llm"`
	ContextSize     int  `yaml:"context_size"`
	FilterStopwords bool `yaml:"filter_stopwords"`
}

// LLMConfig selects the answer-generating model.
type LLMConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Normalizer  NormalizerConfig  `yaml:"normalizer"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Storage     StorageConfig     `yaml:"storage"`
	Search      SearchConfig      `yaml:"search"`
	LLM         LLMConfig         `yaml:"llm"`
	Server      ServerConfig      `yaml:"server"`
}

// Addr returns the HTTP listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads a config from path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and
// loads them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); errors.Is(err, os.ErrNotExist) {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".docrag")
	}
	return filepath.Join(home, ".local", "share", "docrag")
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	dataDir := defaultDataDir()
	return &AppConfig{
		Log:        LogConfig{Level: "info", Format: "console"},
		Normalizer: NormalizerConfig{StripDiacritics: true},
		Chunker:    ChunkerConfig{ChunkSize: 700, Overlap: 100},
		Embedder: EmbedderConfig{
			Type:      "hashing",
			Dimension: 384,
			CacheSize: 4096,
			OpenAI: OpenAIEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-3-small",
				Style:       "openai",
				TimeoutSecs: 30,
				MaxRetries:  3,
			},
		},
		VectorStore: VectorStoreConfig{
			Type:           "sqlite",
			MatchThreshold: 0.3,
			Chromem: ChromemConfig{
				Path:       filepath.Join(dataDir, "vectors"),
				Compress:   true,
				Collection: "chunks",
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "docrag_chunks",
			},
		},
		Storage: StorageConfig{Type: "sqlite", Path: filepath.Join(dataDir, "docrag.db")},
		Search: SearchConfig{
			DefaultLimit: 8,
			Strict:       true,
			ContextSize:  300,
		},
		LLM: LLMConfig{
			Type:        "none",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-4o-mini",
			TimeoutSecs: 60,
		},
		Server: ServerConfig{Host: "localhost", Port: 8080},
	}
}

// applyConfigDefaults fills zero values an explicit config may have cleared.
func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = def.Embedder.CacheSize
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = def.Search.DefaultLimit
	}
	if cfg.Search.ContextSize == 0 {
		cfg.Search.ContextSize = def.Search.ContextSize
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "none"
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.VectorStore.Chromem.Path = expandHome(cfg.VectorStore.Chromem.Path)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	switch {
	case c.Chunker.ChunkSize <= 0:
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	case c.Chunker.Overlap < 0:
		return fmt.Errorf("chunker.overlap must not be negative, got %d", c.Chunker.Overlap)
	case c.Embedder.Dimension <= 0:
		return fmt.Errorf("embedder.dimension must be positive, got %d", c.Embedder.Dimension)
	case c.Embedder.CacheSize < 0:
		return fmt.Errorf("embedder.cache_size must not be negative, got %d", c.Embedder.CacheSize)
	case c.VectorStore.MatchThreshold < -1 || c.VectorStore.MatchThreshold > 1:
		return fmt.Errorf("vector_store.match_threshold must be within [-1, 1], got %v", c.VectorStore.MatchThreshold)
	case c.Search.DefaultLimit < 0:
		return fmt.Errorf("search.default_limit must not be negative, got %d", c.Search.DefaultLimit)
	}
	if err := oneOf("log.format", c.Log.Format, "console", "json"); err != nil {
		return err
	}
	if err := oneOf("embedder.type", c.Embedder.Type, "hashing", "openai"); err != nil {
		return err
	}
	if err := oneOf("vector_store.type", c.VectorStore.Type, "sqlite", "memory", "chromem", "qdrant"); err != nil {
		return err
	}
	if err := oneOf("storage.type", c.Storage.Type, "sqlite", "memory"); err != nil {
		return err
	}
	if err := oneOf("llm.type", c.LLM.Type, "none", "openai"); err != nil {
		return err
	}
	if c.VectorStore.Type == "sqlite" && c.Storage.Type != "sqlite" {
		return errors.New("vector_store.type sqlite requires storage.type sqlite")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}
