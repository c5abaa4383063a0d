package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/embedding"
	"github.com/Tornshorts/RAG-Tutorial/internal/extract"
	"github.com/Tornshorts/RAG-Tutorial/internal/indexer"
	"github.com/Tornshorts/RAG-Tutorial/internal/llm"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

// components holds everything a command needs, built from one config.
type components struct {
	Store    storage.IndexStore
	Embedder embedding.Embedder
	Loader   *extract.Loader
	Indexer  *indexer.Indexer
	Engine   *search.Engine
}

// Close releases the store and the embedder.
func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newOllamaClient(host string) (*api.Client, error) {
	base, err := url.Parse(host)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q", host)
	}
	return api.NewClient(base, http.DefaultClient), nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	client, err := newOllamaClient(cfg.Ollama.Host)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	embedder := embedding.NewOllamaEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Timeout)
	loader := extract.NewLoader(
		extract.WithExtensions(cfg.Extensions),
		extract.WithLogger(logger),
	)
	splitter := indexer.NewSplitter(
		indexer.WithChunkSize(cfg.Search.ChunkSize),
		indexer.WithChunkOverlap(cfg.Search.ChunkOverlap),
	)
	idx := indexer.NewIndexer(
		store,
		embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize),
		loader,
		indexer.WithSplitter(splitter),
		indexer.WithConcurrency(cfg.Embedding.Concurrency),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
		indexer.WithLogger(logger),
	)

	llmOpts := []llm.Option{llm.WithTimeout(cfg.LLM.Timeout)}
	if cfg.LLM.Temperature != nil {
		llmOpts = append(llmOpts, llm.WithTemperature(*cfg.LLM.Temperature))
	}
	completer := llm.NewOllamaCompleter(client, cfg.LLM.Model, llmOpts...)
	engine := search.NewEngine(embedder, store, completer,
		search.WithTopK(cfg.Search.TopK),
		search.WithLogger(logger),
	)

	logger.Debug("components initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("ollama", cfg.Ollama.Host),
		zap.String("embed_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model))

	return &components{
		Store:    store,
		Embedder: embedder,
		Loader:   loader,
		Indexer:  idx,
		Engine:   engine,
	}, nil
}
