// Package model orchestrates the matrix-factorization lifecycle: train, persist, load, evaluate, delete.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/domain"
	dommodel "github.com/kailas-cloud/modeld/internal/domain/model"
	"github.com/kailas-cloud/modeld/internal/logger"
	"github.com/kailas-cloud/modeld/internal/metrics"
)

// DefaultNameAttempts bounds name regeneration on collision.
const DefaultNameAttempts = 5

// Service handles model CRUD. Training runs outside any lock; storage access
// for a name is serialized by a per-name read-write lock.
type Service struct {
	repo         Repository
	trainer      domain.Trainer
	evaluate     EvaluateFunc
	nameAttempts int
	generateName func() (string, error)
	locks        *keyedLocks
}

// Option configures a Service.
type Option func(*Service)

// WithNameAttempts overrides how many generated names are tried before Create gives up.
func WithNameAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.nameAttempts = n
		}
	}
}

// WithNameGenerator replaces the random name source.
func WithNameGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.generateName = gen }
}

// New creates a model service.
func New(repo Repository, trainer domain.Trainer, evaluate EvaluateFunc, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		trainer:      trainer,
		evaluate:     evaluate,
		nameAttempts: DefaultNameAttempts,
		generateName: dommodel.Generate,
		locks:        newKeyedLocks(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create trains a new model and stores it under a freshly generated name.
func (s *Service) Create(ctx context.Context, req domain.TrainingRequest) (string, error) {
	art, err := s.train(ctx, "create", req)
	if err != nil {
		return "", err
	}

	for range s.nameAttempts {
		name, err := s.generateName()
		if err != nil {
			return "", fmt.Errorf("generate model name: %w: %w", domain.ErrPersistenceFailed, err)
		}

		saved, err := s.saveIfAbsent(ctx, name, art)
		if err != nil {
			return "", err
		}
		if saved {
			return name, nil
		}
		logger.FromContext(ctx).Warn("Generated model name already taken", zap.String("model", name))
	}
	metrics.ArtifactOperationsTotal.WithLabelValues("save", "error").Inc()
	return "", fmt.Errorf("no free model name after %d attempts: %w", s.nameAttempts, domain.ErrPersistenceFailed)
}

// Update retrains the named model, replacing any existing artifact, and returns the new tables.
func (s *Service) Update(ctx context.Context, rawName string, req domain.TrainingRequest) (domain.FeatureTables, error) {
	name, err := dommodel.Sanitize(rawName)
	if err != nil {
		return domain.FeatureTables{}, fmt.Errorf("update model: %w", err)
	}

	art, err := s.train(ctx, "update", req)
	if err != nil {
		return domain.FeatureTables{}, err
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	err = s.repo.Save(ctx, name, art)
	metrics.ArtifactOperationsTotal.WithLabelValues("save", metrics.Status(err)).Inc()
	if err != nil {
		return domain.FeatureTables{}, fmt.Errorf("save model %s: %w: %w", name, domain.ErrPersistenceFailed, err)
	}
	return art.Features, nil
}

// Get returns the feature tables of the named model.
func (s *Service) Get(ctx context.Context, rawName string) (domain.FeatureTables, error) {
	name, err := dommodel.Sanitize(rawName)
	if err != nil {
		return domain.FeatureTables{}, fmt.Errorf("get model: %w", err)
	}
	art, err := s.load(ctx, name)
	if err != nil {
		return domain.FeatureTables{}, err
	}
	return art.Features, nil
}

// Delete removes the named model. Deleting a model that does not exist fails.
func (s *Service) Delete(ctx context.Context, rawName string) error {
	name, err := dommodel.Sanitize(rawName)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	err = s.repo.Delete(ctx, name)
	metrics.ArtifactOperationsTotal.WithLabelValues("delete", metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("delete model %s: %w: %w", name, domain.ErrDeletionFailed, err)
	}
	return nil
}

// Evaluate scores the named model against held-out ratings.
func (s *Service) Evaluate(ctx context.Context, rawName string, ratings domain.RatingMatrix) (domain.Evaluation, error) {
	name, err := dommodel.Sanitize(rawName)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate model: %w", err)
	}
	art, err := s.load(ctx, name)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return domain.Evaluation{}, err
	}

	ev, err := s.evaluate(art.Features, ratings)
	metrics.EvaluationsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate model %s: %w", name, err)
	}
	return ev, nil
}

func (s *Service) train(ctx context.Context, op string, req domain.TrainingRequest) (domain.Artifact, error) {
	metrics.TrainingRatings.Observe(float64(req.Ratings.Len()))
	start := time.Now()
	art, err := s.trainer.Train(ctx, req)
	metrics.TrainingDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.TrainingTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("train model: %w: %w", domain.ErrTrainingFailed, err)
	}
	return art, nil
}

func (s *Service) load(ctx context.Context, name string) (domain.Artifact, error) {
	unlock := s.locks.RLock(name)
	defer unlock()

	art, err := s.repo.Load(ctx, name)
	metrics.ArtifactOperationsTotal.WithLabelValues("load", metrics.Status(err)).Inc()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Artifact{}, fmt.Errorf("load model %s: %w", name, err)
		}
		return domain.Artifact{}, fmt.Errorf("load model %s: %w: %w", name, domain.ErrNotFound, err)
	}
	return art, nil
}

// saveIfAbsent stores art under name unless the name is taken. The existence
// check and the write happen under the same exclusive lock.
func (s *Service) saveIfAbsent(ctx context.Context, name string, art domain.Artifact) (bool, error) {
	unlock := s.locks.Lock(name)
	defer unlock()

	exists, err := s.repo.Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check model %s: %w: %w", name, domain.ErrPersistenceFailed, err)
	}
	if exists {
		return false, nil
	}
	err = s.repo.Save(ctx, name, art)
	metrics.ArtifactOperationsTotal.WithLabelValues("save", metrics.Status(err)).Inc()
	if err != nil {
		return false, fmt.Errorf("save model %s: %w: %w", name, domain.ErrPersistenceFailed, err)
	}
	return true, nil
}
