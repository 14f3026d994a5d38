package types

import "errors"

// ARCHITECTURAL DISCOVERY: Registration only rejects an unusable identifier;
// every other missing field is defaulted instead of failing
var (
	ErrMissingSessionID   = errors.New("id is required")
	ErrSessionIDTooLong   = errors.New("id must be at most 256 bytes")
	ErrSessionIDNotString = errors.New("id must be a string")
	ErrInvalidSignal      = errors.New("invalid signal frame")
)
