package bus

import "errors"

var (
	ErrEmptyEventType = errors.New("bus: empty event type")
	ErrNilHandler     = errors.New("bus: nil handler")
	ErrScopeClosed    = errors.New("bus: scope closed")
	ErrPayloadType    = errors.New("bus: unexpected payload type")
)
