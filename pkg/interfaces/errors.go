package interfaces

import "errors"

// Common interface errors used across components.
var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrSendBufferFull  = errors.New("connection send buffer full")
)
