// Package provider adapts the two supported LLM backends to a single
// streaming contract. Backend A speaks the OpenAI chat-completions SSE
// protocol; backend B speaks Gemini streamGenerateContent, which returns
// back-to-back JSON objects without a line delimiter.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"belgaum-backend/internal/models"
)

type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendGemini Backend = "gemini"
)

// ParseBackend maps a configuration value onto a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendOpenAI:
		return BackendOpenAI, nil
	case BackendGemini:
		return BackendGemini, nil
	}
	return "", fmt.Errorf("unknown LLM provider %q", s)
}

// ErrorFragment is the text appended to the transcript when the backend's
// stream fails.
func (b Backend) ErrorFragment() string {
	if b == BackendOpenAI {
		return "OpenAI Connection Error."
	}
	return "Gemini Connection Error."
}

// ErrUpstreamStatus is returned when the provider answers with a non-200 status.
var ErrUpstreamStatus = errors.New("provider: unexpected upstream status")

// Request is one call to the provider.
type Request struct {
	Transcript   []models.ChatMessage
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

type Config struct {
	Backend            Backend
	Model              string
	Endpoint           string
	APIKey             string
	ConcurrentRequests int
	HTTPClient         *http.Client
}

type backend interface {
	stream(ctx context.Context, req Request, emit func(string)) error
	summarize(ctx context.Context, req Request) (string, error)
	close() error
}

// Adapter bounds concurrent upstream calls and converts stream failures into
// the backend's synthetic error fragment.
type Adapter struct {
	kind   Backend
	impl   backend
	sem    *semaphore.Weighted
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.ConcurrentRequests <= 0 {
		cfg.ConcurrentRequests = 1
	}
	if cfg.HTTPClient == nil {
		// No overall timeout: streams stay open as long as upstream writes.
		cfg.HTTPClient = &http.Client{Transport: http.DefaultTransport}
	}

	var impl backend
	var err error
	switch cfg.Backend {
	case BackendOpenAI:
		impl = newOpenAIBackend(cfg)
	case BackendGemini:
		impl, err = newGeminiBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &Adapter{
		kind:   cfg.Backend,
		impl:   impl,
		sem:    semaphore.NewWeighted(int64(cfg.ConcurrentRequests)),
		logger: logger,
	}, nil
}

func (a *Adapter) Backend() Backend {
	return a.kind
}

// StreamReply delivers reply fragments to emit in arrival order, sequentially
// from the calling goroutine. When the upstream call fails a single error
// fragment is emitted and the error is returned. Cancellation of ctx ends the
// stream without an error fragment.
func (a *Adapter) StreamReply(ctx context.Context, req Request, emit func(string)) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)

	start := time.Now()
	err := a.impl.stream(ctx, req, emit)
	if err == nil {
		a.logger.Debug("provider stream finished",
			zap.String("backend", string(a.kind)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	a.logger.Warn("provider stream failed", zap.String("backend", string(a.kind)), zap.Error(err))
	emit(a.kind.ErrorFragment())
	return err
}

// Summarize runs a single non-streaming completion.
func (a *Adapter) Summarize(ctx context.Context, req Request) (string, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer a.sem.Release(1)

	text, err := a.impl.summarize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s summarize: %w", a.kind, err)
	}
	return text, nil
}

func (a *Adapter) Close() error {
	return a.impl.close()
}
