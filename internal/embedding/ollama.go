package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultModel is the Ollama embedding model used when none is configured.
const DefaultModel = "nomic-embed-text"

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 30 * time.Second

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	client  *api.Client
	model   string
	timeout time.Duration

	mu         sync.Mutex
	dimensions int
}

// NewOllamaEmbedder returns an embedder for model. A timeout <= 0 uses DefaultTimeout.
func NewOllamaEmbedder(client *api.Client, model string, timeout time.Duration) *OllamaEmbedder {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaEmbedder{client: client, model: model, timeout: timeout}
}

// Embed returns the embedding of a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request; output order matches input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: input})
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, &Error{Model: e.model, Err: err}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &Error{Model: e.model, Err: fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))}
	}
	e.mu.Lock()
	if e.dimensions == 0 && len(resp.Embeddings[0]) > 0 {
		e.dimensions = len(resp.Embeddings[0])
	}
	e.mu.Unlock()
	return resp.Embeddings, nil
}

// Dimensions returns the vector length seen so far, or 0 before the first call.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Close is a no-op; the HTTP client is shared.
func (e *OllamaEmbedder) Close() error {
	return nil
}
