package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared across the core. Callers distinguish kinds with
// errors.Is; the excluded HTTP layer maps each kind to a status code.
var (
	// ErrNotFound indicates a missing entity. Recoverable by the caller.
	ErrNotFound = goerr.New("not found")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// index's configured dimension. Bad input, not retried.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrEmbeddingError indicates query text that cannot be embedded
	// (empty or over the configured length). Bad input, not retried.
	ErrEmbeddingError = goerr.New("query text cannot be embedded")

	// ErrInferenceUnavailable indicates a transient upstream LLM failure,
	// surfaced after the internal retry is exhausted.
	ErrInferenceUnavailable = goerr.New("inference boundary unavailable")

	// ErrGuardrailBlocked indicates a policy veto on generated content.
	// Never silently converted to an empty answer.
	ErrGuardrailBlocked = goerr.New("answer blocked by guardrail policy")

	// ErrConcurrencyConflict indicates an optimistic-lock violation on
	// reminder state. Retried internally up to a small bound.
	ErrConcurrencyConflict = goerr.New("conflicting concurrent update")
)
