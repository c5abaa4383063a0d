// Package server provides the HTTP API for document ingest and question answering.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/indexer"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

// Server is the HTTP server for the question-answering API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	store   storage.IndexStore
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		indexer: idx,
		store:   idx.Store(),
		config:  cfg,
		logger:  logger,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/load_documents", s.handleLoadDocuments)
	r.Post("/reset", s.handleReset)
	r.Post("/upload", s.handleUpload)
	r.Get("/files", s.handleListFiles)
	r.Delete("/files/{filename}", s.handleDeleteFile)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.queryTimeout()))
		r.Post("/ask", s.handleAsk)
		r.Get("/api/v1/search", s.handleSearch)
	})
	return r
}

// queryTimeout bounds one question: an embedding call plus a completion.
func (s *Server) queryTimeout() time.Duration {
	return s.config.Embedding.Timeout + s.config.LLM.Timeout + 30*time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
