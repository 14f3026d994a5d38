package websocket

import "errors"

// Connection-related errors
// FUNCTIONAL DISCOVERY: Both count as a delivery failure for the hub; neither
// is ever surfaced to a lifecycle caller
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Handler-related errors
var (
	ErrMalformedSignal = errors.New("malformed signal frame")
)
