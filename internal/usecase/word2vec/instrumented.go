package word2vec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/metrics"
)

// InstrumentedEmbedder wraps an Embedder with metrics and logging.
// Transport metrics of remote providers are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, provider string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, provider: provider, logger: logger}
}

// Load delegates to the inner embedder and records load time and the loaded gauge.
func (p *InstrumentedEmbedder) Load(ctx context.Context) error {
	wasLoaded := p.inner.Loaded()
	start := time.Now()

	err := p.inner.Load(ctx)

	duration := time.Since(start)
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, "load").Inc()
		p.logger.Error("Word vector load failed",
			zap.String("provider", p.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return fmt.Errorf("load: %w", err)
	}

	if !wasLoaded {
		metrics.EmbedderLoadDuration.WithLabelValues(p.provider).Observe(duration.Seconds())
		p.logger.Info("Word vectors ready",
			zap.String("provider", p.provider),
			zap.Int("dimensions", p.inner.Dimensions()),
			zap.Duration("duration", duration),
		)
	}
	metrics.EmbedderLoaded.WithLabelValues(p.provider).Set(1)
	return nil
}

// Free delegates to the inner embedder and clears the loaded gauge.
func (p *InstrumentedEmbedder) Free(ctx context.Context) error {
	if err := p.inner.Free(ctx); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, "free").Inc()
		return fmt.Errorf("free: %w", err)
	}
	metrics.EmbedderLoaded.WithLabelValues(p.provider).Set(0)
	p.logger.Info("Word vectors freed", zap.String("provider", p.provider))
	return nil
}

// Loaded delegates to the inner embedder.
func (p *InstrumentedEmbedder) Loaded() bool { return p.inner.Loaded() }

// Dimensions delegates to the inner embedder.
func (p *InstrumentedEmbedder) Dimensions() int { return p.inner.Dimensions() }

// Center delegates to the inner embedder and records request metrics.
func (p *InstrumentedEmbedder) Center(ctx context.Context, words []string) ([]float32, error) {
	metrics.EmbeddingWordsTotal.WithLabelValues(p.provider).Add(float64(len(words)))
	start := time.Now()

	vec, err := p.inner.Center(ctx, words)

	duration := time.Since(start)
	metrics.EmbeddingRequestDuration.WithLabelValues(p.provider).Observe(duration.Seconds())

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, errorType(err)).Inc()
		level := p.logger.Error
		if errors.Is(err, domain.ErrModelNotLoaded) || errors.Is(err, domain.ErrEmptyQuery) {
			level = p.logger.Debug
		}
		level("Center computation failed",
			zap.String("provider", p.provider),
			zap.Int("words", len(words)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("center: %w", err)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, "success").Inc()
	p.logger.Debug("Center computed",
		zap.String("provider", p.provider),
		zap.Int("words", len(words)),
		zap.Int("dimensions", len(vec)),
		zap.Duration("duration", duration),
	)
	return vec, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelNotLoaded):
		return "not_loaded"
	case errors.Is(err, domain.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
