package intent

import "errors"

var (
	// ErrMissingInput is returned when the message to parse is empty.
	ErrMissingInput = errors.New("intent: message is required")

	// ErrMissingCredential is returned when no model API key is configured.
	ErrMissingCredential = errors.New("intent: model credential is not configured")

	// ErrRateLimited is returned when the model API throttles the request.
	ErrRateLimited = errors.New("intent: upstream rate limit exceeded")

	// ErrQuotaExceeded is returned when the model account has no credit left.
	ErrQuotaExceeded = errors.New("intent: upstream quota exhausted")

	// ErrUpstream covers every other model API failure.
	ErrUpstream = errors.New("intent: upstream model error")

	errMalformedOutput = errors.New("intent: malformed model output")
)
