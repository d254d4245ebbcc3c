package domain

import "context"

// WordQuery is an ordered list of raw word tokens.
type WordQuery []string

// Embedder owns a word vector table with an explicit load/free lifecycle.
// Center must never observe a table that a concurrent Free has released.
type Embedder interface {
	Load(ctx context.Context) error
	Free(ctx context.Context) error
	Center(ctx context.Context, words []string) ([]float32, error)
	Loaded() bool
	Dimensions() int
}

// TextFilter strips stop words, punctuation, URLs and e-mail addresses.
type TextFilter interface {
	Apply(words []string) []string
}
