package health

import "context"

// Pinger checks that a backing resource is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WordTable reports the word vector table state.
type WordTable interface {
	Loaded() bool
	Dimensions() int
}
