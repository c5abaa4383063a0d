// Package config provides configuration loading and structs for the ragtutorial server and CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool   `yaml:"debug"`
	DataDir string `yaml:"data_dir"`
	// Extensions are the file types loaded from DataDir.
	Extensions []string        `yaml:"extensions"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Ollama     OllamaConfig    `yaml:"ollama"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	LLM        LLMConfig       `yaml:"llm"`
	Search     SearchConfig    `yaml:"search"`
	Watch      WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// StorageConfig selects and configures the index store.
type StorageConfig struct {
	// Backend is "sqlite" or "qdrant".
	Backend    string       `yaml:"backend"`
	PersistDir string       `yaml:"persist_dir"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the gRPC endpoint and collection of a Qdrant server.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// Addr returns host:port.
func (q QdrantConfig) Addr() string {
	return fmt.Sprintf("%s:%d", q.Host, q.Port)
}

// OllamaConfig holds the Ollama server URL shared by the embedder and the language model.
type OllamaConfig struct {
	Host string `yaml:"host"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	BatchSize   int           `yaml:"batch_size"`
	CacheSize   int           `yaml:"cache_size"`
}

// LLMConfig holds answer-generation settings.
type LLMConfig struct {
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature *float64      `yaml:"temperature"`
}

// SearchConfig holds retrieval and chunking settings.
type SearchConfig struct {
	TopK         int `yaml:"top_k"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	KeywordLimit int `yaml:"keyword_limit"`
}

// WatchConfig controls automatic ingest when the data directory changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies environment overrides and defaults,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default configuration with environment overrides applied.
// Relative paths resolve against the working directory.
func Default() (*Config, error) {
	var cfg Config
	if err := finish(&cfg, "."); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, baseDir string) error {
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	ApplyDefaults(cfg)
	cfg.DataDir = expandPath(cfg.DataDir, baseDir)
	cfg.Storage.PersistDir = expandPath(cfg.Storage.PersistDir, baseDir)
	return nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from RAG_* variables and OLLAMA_HOST.
func ApplyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	if v := os.Getenv("RAG_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RAG_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	str("RAG_DATA_DIR", &cfg.DataDir)
	str("RAG_HOST", &cfg.Server.Host)
	str("RAG_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("RAG_PERSIST_DIR", &cfg.Storage.PersistDir)
	str("RAG_QDRANT_HOST", &cfg.Storage.Qdrant.Host)
	str("RAG_QDRANT_COLLECTION", &cfg.Storage.Qdrant.Collection)
	str("OLLAMA_HOST", &cfg.Ollama.Host)
	str("RAG_EMBED_MODEL", &cfg.Embedding.Model)
	str("RAG_LLM_MODEL", &cfg.LLM.Model)

	for key, dst := range map[string]*int{
		"RAG_PORT":        &cfg.Server.Port,
		"RAG_QDRANT_PORT": &cfg.Storage.Qdrant.Port,
		"RAG_TOP_K":       &cfg.Search.TopK,
		"RAG_CHUNK_SIZE":  &cfg.Search.ChunkSize,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if err := dur("RAG_EMBED_TIMEOUT", &cfg.Embedding.Timeout); err != nil {
		return err
	}
	return dur("RAG_LLM_TIMEOUT", &cfg.LLM.Timeout)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Relative paths resolve against baseDir;
// a leading "~/" resolves against the home directory.
func expandPath(path string, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	joined := filepath.Join(baseDir, path)
	if abs, err := filepath.Abs(joined); err == nil {
		return abs
	}
	return joined
}
