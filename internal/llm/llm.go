// Package llm generates answer text from a prompt via Ollama.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// ErrAnswerGeneration is matched by every error returned from a completion call.
var ErrAnswerGeneration = errors.New("answer generation failed")

const (
	// DefaultModel is the Ollama model used when none is configured.
	DefaultModel = "llama3.2"
	// DefaultTimeout bounds a single completion.
	DefaultTimeout = 2 * time.Minute
)

// Completer turns a prompt into text. Output may vary between calls.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Error describes a failed completion.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%v: %v", ErrAnswerGeneration, e.Err)
	}
	return fmt.Sprintf("%v (model %s): %v", ErrAnswerGeneration, e.Model, e.Err)
}

// Unwrap exposes both ErrAnswerGeneration and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrAnswerGeneration, e.Err}
}

// Timeout reports whether the completion ran past its deadline.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// OllamaCompleter calls the Ollama /api/generate endpoint without streaming.
type OllamaCompleter struct {
	client      *api.Client
	model       string
	timeout     time.Duration
	temperature float64
}

// Option configures an OllamaCompleter.
type Option func(*OllamaCompleter)

// WithTemperature sets the sampling temperature passed to the model.
func WithTemperature(t float64) Option {
	return func(c *OllamaCompleter) {
		c.temperature = t
	}
}

// WithTimeout bounds each completion. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *OllamaCompleter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewOllamaCompleter returns a completer for model.
func NewOllamaCompleter(client *api.Client, model string, opts ...Option) *OllamaCompleter {
	if model == "" {
		model = DefaultModel
	}
	c := &OllamaCompleter{client: client, model: model, timeout: DefaultTimeout, temperature: -1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends prompt and returns the full response text.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if c.temperature >= 0 {
		req.Options = map[string]any{"temperature": c.temperature}
	}

	var sb strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return "", &Error{Model: c.model, Err: err}
	}
	return strings.TrimSpace(sb.String()), nil
}

// MockCompleter returns a fixed reply or error and records prompts.
type MockCompleter struct {
	Reply   string
	Err     error
	Prompts []string
}

// Complete records prompt and returns Reply, or Err wrapped as *Error.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", &Error{Model: "mock", Err: m.Err}
	}
	return m.Reply, nil
}
