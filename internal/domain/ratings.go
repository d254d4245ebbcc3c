package domain

// RatingMatrix maps user id -> item id -> rating.
type RatingMatrix map[int64]map[int64]float64

// Len returns the total number of ratings.
func (m RatingMatrix) Len() int {
	n := 0
	for _, items := range m {
		n += len(items)
	}
	return n
}

// Rating is a single (user, item, value) triple.
type Rating struct {
	User  int64
	Item  int64
	Value float64
}

// Flatten returns every rating as a triple. Order is unspecified.
func (m RatingMatrix) Flatten() []Rating {
	out := make([]Rating, 0, m.Len())
	for u, items := range m {
		for i, v := range items {
			out = append(out, Rating{User: u, Item: i, Value: v})
		}
	}
	return out
}

// TrainingRequest is a validated factorization job.
type TrainingRequest struct {
	Ratings    RatingMatrix
	Rank       int
	Iterations int
	Lambda     float64
}
