package dispatch

import "errors"

// Dispatch error types. All of them are reported to the origin connection
// as an error event; none of them crash the hub.
var (
	ErrIdentityTokenRequired = errors.New("identity token required for dashboard join")
	ErrInvalidIdentityToken  = errors.New("invalid identity token")
	ErrIdentityMismatch      = errors.New("asserted identity does not match token claims")
)
