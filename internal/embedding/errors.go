package embedding

import "errors"

var (
	// ErrProviderUnavailable indicates the embedding provider could not be
	// reached or rejected the request.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrRequestTimeout indicates a provider call exceeded its deadline.
	ErrRequestTimeout = errors.New("embedding request timed out")

	// ErrBatchLengthMismatch indicates a batch call returned a different number
	// of vectors than texts submitted. This is an integrity violation: the
	// batch is never retried verbatim; callers fall back to per-text generation.
	ErrBatchLengthMismatch = errors.New("batch embedding count does not match input count")

	// ErrRetryExhausted indicates all retry attempts failed. The last
	// underlying cause is wrapped and reachable via errors.Is/As.
	ErrRetryExhausted = errors.New("embedding retries exhausted")

	// ErrCoalescerClosed is returned for requests pending or submitted after
	// the coalescer has shut down.
	ErrCoalescerClosed = errors.New("embedding coalescer closed")
)
