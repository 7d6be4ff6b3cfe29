package polling

import "errors"

// Polling transport errors.
var (
	ErrConnectionClosed = errors.New("poll connection closed")
	ErrInvalidJSON      = errors.New("invalid JSON data")
	ErrUnknownPollID    = errors.New("unknown poll connection id")
)
