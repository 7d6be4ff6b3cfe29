package events

import "errors"

// Boundary validation errors. All of them reject the inbound event before
// any state mutation.
var (
	ErrUnknownEventType = errors.New("unknown inbound event type")
	ErrEmptyPayload     = errors.New("inbound event payload is empty")
	ErrMalformedPayload = errors.New("inbound event payload is not valid JSON")
)
