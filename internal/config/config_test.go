package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  timeout: 5s
llm:
  model: "mistral"
  temperature: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("embedding timeout: got %s", cfg.Embedding.Timeout)
	}
	if cfg.LLM.Model != "mistral" || cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0 {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("llm timeout default: got %s", cfg.LLM.Timeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_pathsRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: "./docs"
storage:
  persist_dir: "store"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "docs"); cfg.DataDir != want {
		t.Errorf("data_dir = %s, want %s", cfg.DataDir, want)
	}
	if want := filepath.Join(dir, "store"); cfg.Storage.PersistDir != want {
		t.Errorf("persist_dir = %s, want %s", cfg.Storage.PersistDir, want)
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 5000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.TopK != 4 {
		t.Errorf("default top_k: got %d", cfg.Search.TopK)
	}
	if cfg.Search.ChunkSize != 500 || cfg.Search.ChunkOverlap != 50 {
		t.Errorf("default chunking: %d/%d", cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("default backend: got %s", cfg.Storage.Backend)
	}
	if cfg.Embedding.Timeout != 30*time.Second || cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("default timeouts: %s / %s", cfg.Embedding.Timeout, cfg.LLM.Timeout)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".pdf" {
		t.Errorf("default extensions: got %v", cfg.Extensions)
	}
	if cfg.Server.MaxUploadBytes != 16<<20 {
		t.Errorf("default upload limit: got %d", cfg.Server.MaxUploadBytes)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RAG_PORT", "7000")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	t.Setenv("RAG_DEBUG", "true")
	t.Setenv("RAG_LLM_TIMEOUT", "10s")

	cfg := &Config{}
	if err := ApplyEnv(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 || cfg.Search.TopK != 8 {
		t.Errorf("numeric overrides: port=%d top_k=%d", cfg.Server.Port, cfg.Search.TopK)
	}
	if cfg.Ollama.Host != "http://ollama:11434" {
		t.Errorf("OLLAMA_HOST: got %s", cfg.Ollama.Host)
	}
	if !cfg.Debug || cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("debug=%v llm timeout=%s", cfg.Debug, cfg.LLM.Timeout)
	}
}

func TestApplyEnv_invalid(t *testing.T) {
	t.Setenv("RAG_TOP_K", "many")
	if err := ApplyEnv(&Config{}); err == nil {
		t.Error("expected error for non-numeric RAG_TOP_K")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("RAG_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAG_TEST_DOTENV", "")
	os.Unsetenv("RAG_TEST_DOTENV")

	if err := LoadDotEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("RAG_TEST_DOTENV"); got != "from-file" {
		t.Errorf("got %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{Backend: BackendQdrant},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.Backend != BackendQdrant {
		t.Errorf("loaded: port=%d backend=%s", loaded.Server.Port, loaded.Storage.Backend)
	}
}

func TestQdrantConfig_Addr(t *testing.T) {
	q := QdrantConfig{Host: "qdrant", Port: 6334}
	if q.Addr() != "qdrant:6334" {
		t.Errorf("Addr: got %s", q.Addr())
	}
}
