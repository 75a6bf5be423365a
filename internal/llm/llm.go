// Package llm wraps the text generation backends used for summaries and translations.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/shelfnotes/internal/metrics"
)

// Backend names accepted by New.
const (
	BackendOpenAI = "openai"
	BackendVertex = "vertex"
)

// Request is a single system+user completion request.
type Request struct {
	// Kind labels the request in metrics ("summary", "translate").
	Kind        string
	System      string
	Prompt      string
	Temperature float32
}

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Model   string
	Timeout time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string

	VertexProject string
	VertexRegion  string
}

// New builds the configured backend wrapped with timeout and metrics.
// The returned close function releases backend resources.
func New(ctx context.Context, cfg Config) (Completer, func() error, error) {
	var (
		backend Completer
		closeFn = func() error { return nil }
	)

	switch strings.ToLower(cfg.Backend) {
	case "", BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("llm: openai backend requires an API key")
		}
		backend = NewOpenAI(cfg.OpenAIAPIKey, WithModel(cfg.Model), WithBaseURL(cfg.OpenAIBaseURL))
		cfg.Backend = BackendOpenAI
	case BackendVertex:
		v, err := NewVertex(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		backend = v
		closeFn = v.Close
	default:
		return nil, nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}

	return Instrument(strings.ToLower(cfg.Backend), cfg.Timeout, backend), closeFn, nil
}

// Instrument bounds every call by timeout (when positive) and records its duration.
func Instrument(name string, timeout time.Duration, c Completer) Completer {
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		kind := req.Kind
		if kind == "" {
			kind = "completion"
		}
		start := time.Now()
		out, err := c.Complete(ctx, req)
		metrics.CompletionDuration.WithLabelValues(name, kind).Observe(time.Since(start).Seconds())
		return out, err
	})
}

// cleanOutput strips surrounding whitespace and a wrapping Markdown code fence.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
