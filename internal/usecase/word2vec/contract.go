package word2vec

// TextFilter drops tokens that carry no meaning for the average.
type TextFilter interface {
	Apply(words []string) []string
}
