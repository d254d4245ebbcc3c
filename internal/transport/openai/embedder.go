package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/embedding"
	"github.com/kailas-cloud/modeld/internal/metrics"
)

// Embedder computes word centers with an OpenAI-compatible embeddings API (e.g. Nebius).
// Load verifies the API is reachable; Center embeds all words in one request and averages them.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger

	mu       sync.RWMutex
	loaded   bool
	observed atomic.Int64
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     l,
	}
}

// Load checks API availability and marks the embedder ready. Loading twice is a no-op.
func (e *Embedder) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	if err := e.HealthCheck(ctx); err != nil {
		return fmt.Errorf("load %s embedder: %w", e.provider, parseAPIError(err))
	}
	e.loaded = true
	return nil
}

// Free marks the embedder unavailable. Freeing twice is a no-op.
func (e *Embedder) Free(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

// Loaded reports whether Load has succeeded since the last Free.
func (e *Embedder) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Dimensions returns the configured vector size, or the last observed one when unset.
func (e *Embedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.dimensions > 0 {
		return e.dimensions
	}
	return int(e.observed.Load())
}

// Center implements domain.Embedder. Records transport-level metrics.
func (e *Embedder) Center(ctx context.Context, words []string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.loaded {
		return nil, domain.ErrModelNotLoaded
	}
	if len(words) == 0 {
		return nil, domain.ErrEmptyQuery
	}

	vectors, err := e.embed(ctx, words)
	if err != nil {
		return nil, err
	}

	center, err := embedding.Mean(vectors)
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, "bad_response").Inc()
		return nil, fmt.Errorf("average embeddings: %w: %w", domain.ErrEmbedderFailed, err)
	}
	e.observed.Store(int64(len(center)))
	return center, nil
}

func (e *Embedder) embed(ctx context.Context, words []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          words,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, "api_error").Inc()
		return nil, parseAPIError(err)
	}
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider).Observe(duration.Seconds())

	if len(resp.Data) != len(words) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, "count_mismatch").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d words: %w",
			len(resp.Data), len(words), domain.ErrEmbedderFailed)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}

	e.logger.Debug("Embedded words",
		zap.String("provider", e.provider),
		zap.Int("words", len(words)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", duration),
	)
	return out, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbedderFailed.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbedderFailed

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
