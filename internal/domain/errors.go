package domain

import "errors"

var (
	// ErrNotFound signals a missing or unreadable model artifact.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName signals a model name that sanitizes to nothing usable.
	ErrInvalidName = errors.New("invalid model name")

	// ErrTrainingFailed signals that the trainer could not produce an artifact.
	ErrTrainingFailed = errors.New("training failed")
	// ErrPersistenceFailed signals that a trained artifact could not be stored.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrDeletionFailed signals that an artifact could not be removed.
	ErrDeletionFailed = errors.New("deletion failed")
	// ErrNothingToEvaluate signals that no held-out rating matched the model.
	ErrNothingToEvaluate = errors.New("no ratings matched the model")

	// ErrModelNotLoaded signals a center request while the vector table is unloaded.
	ErrModelNotLoaded = errors.New("word vector model not loaded")
	// ErrEmptyQuery signals a word query with no usable words after filtering.
	ErrEmptyQuery = errors.New("empty or unfilterable input")
	// ErrEmbedderFailed signals a failure inside the embedding provider.
	ErrEmbedderFailed = errors.New("embedder failed")
)
