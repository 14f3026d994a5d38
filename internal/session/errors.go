package session

import "sessionrelay/pkg/interfaces"

// ErrSessionNotFound is returned by Lookup and Complete for unknown IDs
var ErrSessionNotFound = interfaces.ErrSessionNotFound
