package session

import "errors"

// Session store errors.
var (
	ErrInvalidCreatedBy    = errors.New("invalid created_by user id")
	ErrInvalidLanguage     = errors.New("invalid session language")
	ErrSessionAlreadyEnded = errors.New("session already ended")
)
