package engine

import "errors"

// Failure taxonomy for engine adapter processing. Failures never cross the
// adapter boundary as panics or raw errors; they resolve into an Outcome
// envelope carrying a string-reduced message. Callers that need to branch on
// the category use errors.Is against these sentinels.
var (
	// ErrInvalidRequest marks a caller error (missing required fields); not retryable.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConfiguration marks a missing provider key or client; operator error.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvider marks an upstream AI API non-success response.
	ErrProvider = errors.New("provider error")

	// ErrEmptyResponse marks a provider response with no usable text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNotFound marks a referenced query that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence marks a failed store write.
	ErrPersistence = errors.New("persistence error")
)
