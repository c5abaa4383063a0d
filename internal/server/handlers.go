package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/embedding"
	"github.com/Tornshorts/RAG-Tutorial/internal/indexer"
	"github.com/Tornshorts/RAG-Tutorial/internal/llm"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

type askRequest struct {
	Query string `json:"query"`
}

type askErrorResponse struct {
	Error   string             `json:"error"`
	Sources []models.SourceRef `json:"sources"`
	Partial bool               `json:"partial"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.engine.Answer(r.Context(), req.Query)
	if err != nil {
		if answer != nil && answer.Partial {
			s.logger.Warn("answer generation failed", zap.Error(err))
			s.respondJSON(w, statusFor(err), askErrorResponse{
				Error:   err.Error(),
				Sources: answer.Sources,
				Partial: true,
			})
			return
		}
		s.fail(w, "ask", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

type loadResponse struct {
	Message string `json:"message"`
	models.IngestResult
}

func (s *Server) handleLoadDocuments(w http.ResponseWriter, r *http.Request) {
	res, err := s.indexer.Ingest(r.Context(), s.config.DataDir)
	if err != nil {
		s.fail(w, "load documents", err)
		return
	}
	msg := "No new documents to add"
	if res.Added > 0 {
		msg = fmt.Sprintf("Added %d new documents", res.Added)
	}
	s.respondJSON(w, http.StatusOK, loadResponse{Message: msg, IngestResult: *res})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Reset(r.Context()); err != nil {
		s.fail(w, "reset", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Index reset"})
}

type statusResponse struct {
	DocumentsLoaded bool     `json:"documents_loaded"`
	TotalChunks     int      `json:"total_chunks"`
	Sources         []string `json:"sources"`
	Backend         string   `json:"backend"`
	DiskUsageBytes  int64    `json:"disk_usage_bytes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	resp := statusResponse{
		DocumentsLoaded: stats.Entries > 0,
		TotalChunks:     stats.Entries,
		Sources:         stats.Sources,
		Backend:         s.config.Storage.Backend,
	}
	if s.config.Storage.Backend == config.BackendSQLite {
		if n, err := storage.DiskUsageBytes(s.config.Storage.PersistDir); err == nil {
			resp.DiskUsageBytes = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type searchResponse struct {
	Query   string           `json:"query"`
	Mode    string           `json:"mode"`
	Results []*search.Result `json:"results"`
}

// handleSearch serves GET /api/v1/search?q=...&limit=...&mode=hybrid|keyword.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := s.config.Search.KeywordLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	mode := q.Get("mode")
	if mode == "" {
		mode = "hybrid"
	}

	var (
		results []*search.Result
		err     error
	)
	switch mode {
	case "hybrid":
		results, err = s.engine.Search(r.Context(), search.SearchRequest{Query: q.Get("q"), Limit: limit})
	case "keyword":
		var hits []*models.ScoredEntry
		hits, err = s.engine.Keyword(r.Context(), q.Get("q"), limit)
		results = search.KeywordResults(hits)
	default:
		s.respondError(w, http.StatusBadRequest, "mode must be hybrid or keyword")
		return
	}
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, searchResponse{Query: q.Get("q"), Mode: mode, Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, indexer.ErrNoDocumentsFound):
		return http.StatusBadRequest
	case errors.Is(err, indexer.ErrIngestInProgress):
		return http.StatusConflict
	case errors.Is(err, search.ErrKeywordUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, embedding.ErrEmbeddingFailed), errors.Is(err, llm.ErrAnswerGeneration):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
