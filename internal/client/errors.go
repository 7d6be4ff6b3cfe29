package client

import "errors"

// Client errors.
var (
	ErrNoDialer       = errors.New("client requires a dialer")
	ErrAlreadyStarted = errors.New("client already started")
	ErrNotConnected   = errors.New("client not connected")
)
