package router

import "errors"

// Router-specific errors, reported to the sending connection as an error frame
var (
	ErrUnknownSignal     = errors.New("unknown signal")
	ErrMissingSessionID  = errors.New("producer_subscribe requires sessionId")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNilConnection     = errors.New("connection cannot be nil")
)
