package rooms

import "errors"

// Room key construction errors.
var (
	ErrEmptyRoomValue  = errors.New("room value cannot be empty")
	ErrUnknownRoomKind = errors.New("unknown room kind")
)
