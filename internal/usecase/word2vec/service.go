// Package word2vec exposes the word-vector table lifecycle and the center computation.
package word2vec

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	"github.com/kailas-cloud/modeld/internal/logger"
)

// Service filters word queries and averages their vectors.
type Service struct {
	embedder domain.Embedder
	filter   TextFilter
}

// New creates a word2vec service.
func New(embedder domain.Embedder, filter TextFilter) *Service {
	return &Service{embedder: embedder, filter: filter}
}

// Load loads the vector table. Loading an already loaded table succeeds.
func (s *Service) Load(ctx context.Context) error {
	if err := s.embedder.Load(ctx); err != nil {
		return fmt.Errorf("load word vectors: %w", err)
	}
	return nil
}

// Free releases the vector table. Freeing an unloaded table succeeds.
func (s *Service) Free(ctx context.Context) error {
	if err := s.embedder.Free(ctx); err != nil {
		return fmt.Errorf("free word vectors: %w", err)
	}
	return nil
}

// Center filters the query and returns the average vector of the surviving words.
func (s *Service) Center(ctx context.Context, query domain.WordQuery) ([]float32, error) {
	words := s.filter.Apply(query)
	if len(words) == 0 {
		logger.FromContext(ctx).Debug("Word query empty after filtering", zap.Int("words", len(query)))
		return nil, fmt.Errorf("filter %d words: %w", len(query), domain.ErrEmptyQuery)
	}
	vec, err := s.embedder.Center(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("center of %d words: %w", len(words), err)
	}
	return vec, nil
}

// Loaded reports whether the table is in memory.
func (s *Service) Loaded() bool { return s.embedder.Loaded() }

// Dimensions returns the vector size, or 0 while unloaded.
func (s *Service) Dimensions() int { return s.embedder.Dimensions() }
