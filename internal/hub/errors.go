package hub

import "errors"

// Hub-specific errors; both are absorbed and logged, never returned
var (
	ErrEncodeFailed  = errors.New("event encoding failed")
	ErrDeliveryPanic = errors.New("connection panicked during delivery")
)
