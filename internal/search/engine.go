// Package search answers questions over an index store and runs keyword and hybrid lookups.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/embedding"
	"github.com/Tornshorts/RAG-Tutorial/internal/llm"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

// ErrKeywordUnsupported is returned by Keyword when the store keeps no full-text index.
var ErrKeywordUnsupported = errors.New("keyword search not supported by this store")

const (
	// DefaultTopK is the number of chunks handed to the language model.
	DefaultTopK = 4
	// DefaultLimit is the hybrid search result count when none is given.
	DefaultLimit = 10
	// snippetLen bounds Result.Snippet.
	snippetLen = 200
)

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Engine retrieves the chunks most similar to a question and asks a language model to
// answer from them. Nothing is cached between calls.
type Engine struct {
	embedder  embedding.Embedder
	store     storage.IndexStore
	completer llm.Completer
	topK      int
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTopK sets how many chunks are retrieved per question. Values <= 0 are ignored.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. completer may be nil when only search is needed.
func NewEngine(embedder embedding.Embedder, store storage.IndexStore, completer llm.Completer, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder:  embedder,
		store:     store,
		completer: completer,
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Retrieve embeds question and returns the top-k most similar entries, best first.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]*models.ScoredEntry, error) {
	q, err := NormalizeQuery(question)
	if err != nil {
		return nil, err
	}
	return e.retrieve(ctx, q, e.topK)
}

func (e *Engine) retrieve(ctx context.Context, q string, k int) ([]*models.ScoredEntry, error) {
	emb, err := e.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := e.store.Query(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return hits, nil
}

// Answer retrieves context for question and generates an answer from it.
//
// If the language model fails after retrieval succeeded, the returned Answer carries
// the sources with Partial set, together with an error matching llm.ErrAnswerGeneration.
func (e *Engine) Answer(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()
	q, err := NormalizeQuery(question)
	if err != nil {
		return nil, err
	}
	hits, err := e.retrieve(ctx, q, e.topK)
	if err != nil {
		return nil, err
	}
	answer := &models.Answer{Sources: models.SourcesOf(hits)}
	if e.completer == nil {
		answer.Partial = true
		return answer, &llm.Error{Model: "none", Err: errors.New("no language model configured")}
	}

	text, err := e.completer.Complete(ctx, BuildPrompt(q, hits))
	if err != nil {
		answer.Partial = true
		if !errors.Is(err, llm.ErrAnswerGeneration) {
			err = &llm.Error{Err: err}
		}
		return answer, err
	}
	answer.Text = text
	e.logger.Debug("Answered question",
		zap.Int("chunks", len(hits)),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}

// BuildPrompt stuffs the text of every hit, separated by blank lines, ahead of question.
func BuildPrompt(question string, hits []*models.ScoredEntry) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.Entry == nil {
			continue
		}
		parts = append(parts, h.Entry.Text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}

// Keyword runs a full-text lookup over chunk text.
func (e *Engine) Keyword(ctx context.Context, query string, limit int) ([]*models.ScoredEntry, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	ks, ok := e.store.(storage.KeywordSearcher)
	if !ok {
		return nil, ErrKeywordUnsupported
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	hits, err := ks.KeywordSearch(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hits, nil
}

// SearchRequest describes a hybrid lookup. A zero weight disables that signal; both zero
// means equal weights.
type SearchRequest struct {
	Query          string
	Limit          int
	KeywordWeight  float64
	SemanticWeight float64
}

// Result is one hybrid search hit.
type Result struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Page          int     `json:"page"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	Rank          int     `json:"rank"`
}

// Search runs keyword and semantic lookups concurrently and fuses their scores. Stores
// without a keyword index contribute semantic scores only.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]*Result, error) {
	q, err := NormalizeQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.KeywordWeight <= 0 && req.SemanticWeight <= 0 {
		req.KeywordWeight, req.SemanticWeight = 0.5, 0.5
	}
	candidates := req.Limit * 2

	var (
		keywordHits  []*models.ScoredEntry
		semanticHits []*models.ScoredEntry
		errChan      = make(chan error, 2)
		wg           sync.WaitGroup
	)

	if ks, ok := e.store.(storage.KeywordSearcher); ok && req.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := ks.KeywordSearch(ctx, q, candidates)
			if err != nil {
				errChan <- fmt.Errorf("keyword search: %w", err)
				return
			}
			keywordHits = hits
		}()
	}

	if req.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := e.retrieve(ctx, q, candidates)
			if err != nil {
				errChan <- err
				return
			}
			semanticHits = hits
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(keywordHits, semanticHits, req.KeywordWeight, req.SemanticWeight)
	if len(fused) > req.Limit {
		fused = fused[:req.Limit]
	}
	results := make([]*Result, len(fused))
	for i, f := range fused {
		results[i] = &Result{
			ID:            f.Entry.ID,
			Source:        f.Entry.Metadata.Source,
			Page:          f.Entry.Metadata.Page,
			Snippet:       Snippet(f.Entry.Text, snippetLen),
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          i + 1,
		}
	}
	return results, nil
}

// KeywordResults converts ranked keyword hits into results carrying only keyword scores.
func KeywordResults(hits []*models.ScoredEntry) []*Result {
	out := make([]*Result, 0, len(hits))
	for i, h := range hits {
		out = append(out, &Result{
			ID:           h.Entry.ID,
			Source:       h.Entry.Metadata.Source,
			Page:         h.Entry.Metadata.Page,
			Snippet:      Snippet(h.Entry.Text, snippetLen),
			Score:        h.Score,
			KeywordScore: h.Score,
			Rank:         i + 1,
		})
	}
	return out
}
