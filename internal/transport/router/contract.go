package router

import (
	"context"

	"github.com/kailas-cloud/modeld/internal/domain"
)

// ModelService is the matrix-factorization lifecycle the router dispatches to.
type ModelService interface {
	Create(ctx context.Context, req domain.TrainingRequest) (string, error)
	Update(ctx context.Context, name string, req domain.TrainingRequest) (domain.FeatureTables, error)
	Get(ctx context.Context, name string) (domain.FeatureTables, error)
	Delete(ctx context.Context, name string) error
	Evaluate(ctx context.Context, name string, ratings domain.RatingMatrix) (domain.Evaluation, error)
}

// WordService is the word-vector lifecycle the router dispatches to.
type WordService interface {
	Load(ctx context.Context) error
	Free(ctx context.Context) error
	Center(ctx context.Context, query domain.WordQuery) ([]float32, error)
}

// PayloadParser turns untrusted request bodies into validated domain values.
type PayloadParser interface {
	TrainingRequest(raw []byte) (domain.TrainingRequest, error)
	Ratings(raw []byte) (domain.RatingMatrix, error)
	WordQuery(raw []byte) (domain.WordQuery, error)
}
