package registry

import "errors"

// Registry error types. ErrConnectionNotFound is a benign race with a
// disconnect and is reported to the caller, never propagated as fatal.
var (
	ErrNilConnection      = errors.New("connection cannot be nil")
	ErrConnectionExists   = errors.New("connection id already admitted")
	ErrConnectionNotFound = errors.New("connection not found")
)
