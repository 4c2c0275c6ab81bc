package domain

import "errors"

var (
	// ErrUnauthorized means no identity was attached to the request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the identity is neither the record's owner nor an admin.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the target record or lookup result is absent.
	ErrNotFound = errors.New("not found")

	// ErrPersistence means a store write failed; the mutation was aborted.
	ErrPersistence = errors.New("persistence failure")

	// ErrAccessDenied means an upstream rejected our credentials or blocked
	// the request (401/403). Forward geocoding falls back to its static
	// table on this signal.
	ErrAccessDenied = errors.New("upstream access denied")

	// ErrRateLimited is the upstream rate-limit signal (429).
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrUpstreamUnavailable means a remote dependency is unreachable and no
	// fallback table applies.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
