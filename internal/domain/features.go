package domain

import "context"

// FeatureTables holds the latent factors of a trained model.
// Every vector has length equal to the model rank.
type FeatureTables struct {
	UserFeatures    map[int64][]float64 `json:"userFeatures"`
	ProductFeatures map[int64][]float64 `json:"productFeatures"`
}

// Predict returns the estimated rating for (user, item) and whether both are known.
func (f FeatureTables) Predict(user, item int64) (float64, bool) {
	u, ok := f.UserFeatures[user]
	if !ok {
		return 0, false
	}
	p, ok := f.ProductFeatures[item]
	if !ok || len(p) != len(u) {
		return 0, false
	}
	var dot float64
	for k := range u {
		dot += u[k] * p[k]
	}
	return dot, true
}

// Artifact is the output of a training run together with its hyperparameters.
type Artifact struct {
	Features   FeatureTables
	Rank       int
	Iterations int
	Lambda     float64
	CreatedAt  int64
}

// Evaluation is the error of a model against held-out ratings.
type Evaluation struct {
	MSE     float64 `json:"mse"`
	Count   int     `json:"count"`
	Skipped int     `json:"skipped"`
}

// Trainer produces artifacts from rating data.
type Trainer interface {
	Train(ctx context.Context, req TrainingRequest) (Artifact, error)
}
