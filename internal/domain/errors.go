package domain

import "errors"

// Error kinds surfaced by the public API. Callers dispatch on them with
// errors.Is to decide retry vs. fail-fast vs. fallback-model policies.
// Context cancellation is reported as context.Canceled or
// context.DeadlineExceeded, never folded into one of these.
var (
	// ErrUnknownModel means the caller passed a model key that is not in
	// the registry. Always the caller's fault; never retried.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDimensionMismatch means a vector's length disagrees with the
	// registry, either from a backend or between two vectors compared for
	// similarity. It signals registry/backend version skew and is not
	// recoverable by retrying.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBackendUnavailable means the embedding backend could not be
	// loaded or invoked. Not cached: a subsequent call retries the load.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrStoreUnavailable means the vector record store could not be
	// reached. Retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNoModelsRegistered means the registry is empty. This is a
	// startup configuration error.
	ErrNoModelsRegistered = errors.New("no models registered")
)
