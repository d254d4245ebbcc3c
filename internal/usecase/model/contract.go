package model

import (
	"context"

	"github.com/kailas-cloud/modeld/internal/domain"
)

// Repository defines the storage contract for trained artifacts.
type Repository interface {
	Save(ctx context.Context, name string, a domain.Artifact) error
	Load(ctx context.Context, name string) (domain.Artifact, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// EvaluateFunc scores feature tables against held-out ratings.
type EvaluateFunc func(features domain.FeatureTables, ratings domain.RatingMatrix) (domain.Evaluation, error)
