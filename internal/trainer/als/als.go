// Package als trains matrix factorization models with alternating least squares.
package als

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/modeld/internal/domain"
)

// ErrNoRatings signals a training request without a single rating.
var ErrNoRatings = errors.New("als: no ratings")

// Config holds trainer settings.
type Config struct {
	// Workers bounds the goroutines solving one half-step. 0 means GOMAXPROCS.
	Workers int
	// Seed makes factor initialisation deterministic. 0 means time-based.
	Seed uint64
}

// Trainer implements domain.Trainer.
type Trainer struct {
	workers int
	seed    uint64
}

var _ domain.Trainer = (*Trainer)(nil)

// New creates an ALS trainer.
func New(cfg Config) *Trainer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Trainer{workers: workers, seed: cfg.Seed}
}

type entry struct {
	idx    int
	rating float64
}

// Train factorizes the rating matrix into user and product features of length req.Rank.
// Each iteration solves all users against fixed products, then all products against fixed
// users, with the regularization scaled by each row's rating count.
func (t *Trainer) Train(ctx context.Context, req domain.TrainingRequest) (domain.Artifact, error) {
	if req.Rank <= 0 || req.Iterations <= 0 || req.Lambda < 0 {
		return domain.Artifact{}, fmt.Errorf("als: invalid hyperparameters rank=%d iterations=%d lambda=%g",
			req.Rank, req.Iterations, req.Lambda)
	}
	ratings := req.Ratings.Flatten()
	if len(ratings) == 0 {
		return domain.Artifact{}, ErrNoRatings
	}
	// Fixed order so a fixed seed reproduces the same factors.
	slices.SortFunc(ratings, func(a, b domain.Rating) int {
		return cmp.Or(cmp.Compare(a.User, b.User), cmp.Compare(a.Item, b.Item))
	})

	userIdx, users := index(ratings, func(r domain.Rating) int64 { return r.User })
	itemIdx, items := index(ratings, func(r domain.Rating) int64 { return r.Item })

	byUser := make([][]entry, len(users))
	byItem := make([][]entry, len(items))
	for _, r := range ratings {
		u, i := userIdx[r.User], itemIdx[r.Item]
		byUser[u] = append(byUser[u], entry{idx: i, rating: r.Value})
		byItem[i] = append(byItem[i], entry{idx: u, rating: r.Value})
	}

	seed := t.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	userFactors := randomFactors(rng, len(users), req.Rank)
	itemFactors := randomFactors(rng, len(items), req.Rank)

	for it := 0; it < req.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return domain.Artifact{}, fmt.Errorf("als: iteration %d: %w", it, err)
		}
		if err := t.halfStep(ctx, userFactors, itemFactors, byUser, req.Rank, req.Lambda); err != nil {
			return domain.Artifact{}, fmt.Errorf("als: iteration %d users: %w", it, err)
		}
		if err := t.halfStep(ctx, itemFactors, userFactors, byItem, req.Rank, req.Lambda); err != nil {
			return domain.Artifact{}, fmt.Errorf("als: iteration %d items: %w", it, err)
		}
	}

	features := domain.FeatureTables{
		UserFeatures:    make(map[int64][]float64, len(users)),
		ProductFeatures: make(map[int64][]float64, len(items)),
	}
	for i, id := range users {
		features.UserFeatures[id] = userFactors[i]
	}
	for i, id := range items {
		features.ProductFeatures[id] = itemFactors[i]
	}

	return domain.Artifact{
		Features:   features,
		Rank:       req.Rank,
		Iterations: req.Iterations,
		Lambda:     req.Lambda,
		CreatedAt:  time.Now().UnixMilli(),
	}, nil
}

// halfStep recomputes every row of target from the fixed factors.
func (t *Trainer) halfStep(
	ctx context.Context, target, fixed [][]float64, rows [][]entry, rank int, lambda float64,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error is wrapped by Train
			}
			x, err := solveRow(fixed, rows[i], rank, lambda)
			if err != nil {
				return err
			}
			target[i] = x
			return nil
		})
	}
	return g.Wait() //nolint:wrapcheck // wrapped by Train with the iteration number
}

// solveRow solves (YᵀY + λ·n·I)·x = Yᵀr over the n observed entries of one row.
func solveRow(fixed [][]float64, row []entry, rank int, lambda float64) ([]float64, error) {
	a := make([][]float64, rank)
	for k := range a {
		a[k] = make([]float64, rank)
	}
	b := make([]float64, rank)

	for _, e := range row {
		y := fixed[e.idx]
		for p := 0; p < rank; p++ {
			b[p] += e.rating * y[p]
			for q := 0; q <= p; q++ {
				a[p][q] += y[p] * y[q]
			}
		}
	}
	reg := lambda * float64(len(row))
	for p := 0; p < rank; p++ {
		a[p][p] += reg
		for q := 0; q < p; q++ {
			a[q][p] = a[p][q]
		}
	}

	x, err := solve(a, b)
	if err != nil {
		return nil, err
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrSingular
		}
	}
	return x, nil
}

func index(ratings []domain.Rating, key func(domain.Rating) int64) (map[int64]int, []int64) {
	idx := make(map[int64]int)
	var ids []int64
	for _, r := range ratings {
		k := key(r)
		if _, ok := idx[k]; ok {
			continue
		}
		idx[k] = len(ids)
		ids = append(ids, k)
	}
	return idx, ids
}

func randomFactors(rng *rand.Rand, n, rank int) [][]float64 {
	scale := 1 / math.Sqrt(float64(rank))
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, rank)
		for k := range v {
			v[k] = rng.Float64() * scale
		}
		out[i] = v
	}
	return out
}

// Evaluate returns the mean squared error of the model's predictions on held-out ratings.
// Ratings whose user or item the model has never seen are counted as skipped.
func Evaluate(features domain.FeatureTables, ratings domain.RatingMatrix) (domain.Evaluation, error) {
	var ev domain.Evaluation
	var seSum float64
	for user, items := range ratings {
		for item, actual := range items {
			predicted, ok := features.Predict(user, item)
			if !ok {
				ev.Skipped++
				continue
			}
			d := actual - predicted
			seSum += d * d
			ev.Count++
		}
	}
	if ev.Count == 0 {
		return ev, domain.ErrNothingToEvaluate
	}
	ev.MSE = seSum / float64(ev.Count)
	return ev, nil
}
