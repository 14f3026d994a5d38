package types

import (
	"strings"
)

// MaxSessionIDLength bounds the caller-supplied identifier
const MaxSessionIDLength = 256

// Placeholder values written for attributes a producer omits.
// FUNCTIONAL DISCOVERY: A missing field is absent, null or the empty string
const (
	PlaceholderUnspecified = "unspecified"
	PlaceholderUnknown     = "unknown"
)

// AttributeDefaults lists the documented sentinel placeholders
var AttributeDefaults = map[string]string{
	"displayName":   PlaceholderUnspecified,
	"clientAddress": PlaceholderUnknown,
	"region":        PlaceholderUnknown,
}

// ValidateSessionID checks the only mandatory registration field
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingSessionID
	}
	if len(id) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	return nil
}

// ApplyAttributeDefaults returns a copy of attrs with every missing default
// filled. remoteAddr, when known, takes precedence over the clientAddress
// placeholder.
func ApplyAttributeDefaults(attrs map[string]any, remoteAddr string) map[string]any {
	out := CloneAttributes(attrs)
	for key, placeholder := range AttributeDefaults {
		if !isMissing(out[key]) {
			continue
		}
		if key == "clientAddress" && remoteAddr != "" {
			out[key] = remoteAddr
			continue
		}
		out[key] = placeholder
	}
	return out
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// Validate checks an inbound signal frame
func (s *Signal) Validate() error {
	switch s.Signal {
	case SignalObserverJoin:
		return nil
	case SignalProducerSubscribe:
		return ValidateSessionID(s.SessionID)
	default:
		return ErrInvalidSignal
	}
}
