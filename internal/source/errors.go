package source

import (
	"errors"
	"fmt"
)

// Kind buckets an error by how the pipeline must react to it. The retry
// wrapper, the circuit breaker, and the external API each branch on the
// kind, never on concrete error types.
type Kind string

const (
	// KindTransientNetwork covers timeouts, resets, and 5xx responses.
	// Retried with backoff; fed to the breaker after retry exhaustion.
	KindTransientNetwork Kind = "transient_network"

	// KindSourceParse marks a record or page the source rendered in an
	// unexpected shape. Never retried; discards the record, not the page.
	KindSourceParse Kind = "source_parse"

	// KindRateLimited is a 429 or an explicit throttle. Retried like a
	// transient failure but with a longer backoff seed.
	KindRateLimited Kind = "rate_limited"

	// KindBlockedByAntiBot is a challenge page or hard 403. Fails the run
	// and opens the breaker at double weight.
	KindBlockedByAntiBot Kind = "blocked_by_anti_bot"

	// KindInvalidInput is a caller mistake (empty embedding input,
	// malformed rule document). Surfaced unchanged.
	KindInvalidInput Kind = "invalid_input"

	// KindProvider is a failure of a shared dependency (embedding
	// provider, record store).
	KindProvider Kind = "provider"

	// KindConflict is a unique-index violation during upsert.
	KindConflict Kind = "conflict"
)

// Error tags a cause with its taxonomy kind and the source it came from.
type Error struct {
	Kind   Kind
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error. Source and op name the adapter and the
// operation for log lines; either may be empty.
func NewError(kind Kind, src, op string, err error) *Error {
	return &Error{Kind: kind, Source: src, Op: op, Err: err}
}

// KindOf extracts the taxonomy kind from anywhere in the error chain.
// Untagged errors report KindProvider: an unclassified failure must not
// look retryable.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindProvider
}

// IsRetryable reports whether the retry wrapper should attempt again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientNetwork, KindRateLimited:
		return true
	}
	return false
}

// IsAntiBot reports whether the failure counts double against the breaker.
func IsAntiBot(err error) bool {
	return KindOf(err) == KindBlockedByAntiBot
}
