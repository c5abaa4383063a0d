package config

import "time"

// Backend names accepted in storage.backend.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 16 << 20
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	if cfg.Storage.PersistDir == "" {
		cfg.Storage.PersistDir = "./index"
	}
	if cfg.Storage.Qdrant.Host == "" {
		cfg.Storage.Qdrant.Host = "localhost"
	}
	if cfg.Storage.Qdrant.Port == 0 {
		cfg.Storage.Qdrant.Port = 6334
	}
	if cfg.Storage.Qdrant.Collection == "" {
		cfg.Storage.Qdrant.Collection = "rag_chunks"
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 2 * time.Minute
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 4
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 500
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 50
	}
	if cfg.Search.KeywordLimit == 0 {
		cfg.Search.KeywordLimit = 10
	}
	if cfg.Extensions == nil {
		cfg.Extensions = []string{".pdf"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
