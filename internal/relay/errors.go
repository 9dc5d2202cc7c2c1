package relay

import "errors"

var (
	// ErrUnauthorized marks a privileged call whose issuer lacked the
	// required capability. Dropped silently on the wire, surfaced
	// internally for logging and tests.
	ErrUnauthorized = errors.New("relay: unauthorized")

	// ErrNoEndpoint means no connected endpoint matched the identifier.
	ErrNoEndpoint = errors.New("relay: no endpoint for identifier")

	// ErrCallTimeout means the endpoint never answered within the bound.
	ErrCallTimeout = errors.New("relay: call timed out")

	// ErrClosed means the session went away mid-call.
	ErrClosed = errors.New("relay: session closed")

	// ErrBackpressure means the session's outbound queue was full.
	ErrBackpressure = errors.New("relay: outbound queue full")
)
