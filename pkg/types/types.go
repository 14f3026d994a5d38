package types

import (
	"time"
)

// SessionStatus is the lifecycle state of a session record.
// FUNCTIONAL DISCOVERY: Only two states exist; completed never reverts to
// waiting within one creation of a record
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusCompleted SessionStatus = "completed"
)

// Outbound push events
// ARCHITECTURAL DISCOVERY: Event names are part of the wire contract shared
// with observer and producer clients and must not be renamed
const (
	EventNewSession            = "new_session"
	EventSessionUpdated        = "session_updated"
	EventSessionsList          = "sessions_list"
	EventRedirect              = "redirect"
	EventConnectionEstablished = "connection_established"
	EventSubscribed            = "subscribed"
	EventError                 = "error"
)

// Inbound push signals
const (
	SignalObserverJoin      = "observer_join"
	SignalProducerSubscribe = "producer_subscribe"
)

// Connection roles, assigned by the first signal a connection sends
const (
	RoleUnknown  = ""
	RoleObserver = "observer"
	RoleProducer = "producer"
)

// Session is the unit of state tracked per registration.
// FUNCTIONAL DISCOVERY: Attributes are carried verbatim; the relay never
// interprets them beyond applying placeholder defaults at registration
type Session struct {
	ID             string         `json:"id"`
	Status         SessionStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	RedirectTarget string         `json:"redirectTarget,omitempty"`
	Attributes     map[string]any `json:"attributes"`

	// Seq is the arrival order assigned by the store; it breaks CreatedAt ties
	Seq uint64 `json:"-"`
}

// IsWaiting reports whether the session is still in the waiting queue
func (s *Session) IsWaiting() bool {
	return s.Status == StatusWaiting
}

// Clone returns a deep copy so callers never share attribute maps with the store
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	c.Attributes = CloneAttributes(s.Attributes)
	return &c
}

// CloneAttributes copies the top level of an attribute bag
func CloneAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// RegisterRequest carries a producer registration
type RegisterRequest struct {
	ID         string
	Attributes map[string]any
	// RemoteAddr fills the clientAddress placeholder when the producer omits it
	RemoteAddr string
}

// RegisterResult is returned to the registering producer
type RegisterResult struct {
	ID            string `json:"id"`
	ObserverCount int    `json:"observerCount"`
}

// CompleteRequest carries an observer's completion command
type CompleteRequest struct {
	RedirectTarget string
	Overrides      map[string]any
}

// RedirectNotice builds the payload unicast to the bound producer:
// the overrides with redirectTarget layered on top
func (r CompleteRequest) RedirectNotice() map[string]any {
	notice := CloneAttributes(r.Overrides)
	notice["redirectTarget"] = r.RedirectTarget
	return notice
}

// Snapshot is the combined status and liveness view of the relay
type Snapshot struct {
	StoreSize     int        `json:"storeSize"`
	WaitingCount  int        `json:"waitingCount"`
	ObserverCount int        `json:"observerCount"`
	Waiting       []*Session `json:"waiting"`
}

// Envelope is the outbound push frame
// ARCHITECTURAL DISCOVERY: One envelope is marshaled per broadcast and the
// same bytes are handed to every member
type Envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal is the inbound push frame
type Signal struct {
	Signal    string `json:"signal"`
	SessionID string `json:"sessionId,omitempty"`
}

// ConnectionEstablished acknowledges an observer join
type ConnectionEstablished struct {
	Message      string `json:"message"`
	SessionCount int    `json:"sessionCount"`
}

// Subscribed acknowledges a producer subscription
type Subscribed struct {
	SessionID string `json:"sessionId"`
}

// ErrorNotice is pushed back to a connection whose signal was rejected
type ErrorNotice struct {
	Signal string `json:"signal,omitempty"`
	Error  string `json:"error"`
}

// DeliveryReport summarises one fanout call
// FUNCTIONAL DISCOVERY: Failures are counted, never returned as errors, so
// one bad sink cannot surface to the mutation caller
type DeliveryReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Add merges another report into r
func (r *DeliveryReport) Add(other DeliveryReport) {
	r.Attempted += other.Attempted
	r.Delivered += other.Delivered
	r.Failed += other.Failed
}

// JournalEntry is one lifecycle event recorded by the audit journal
type JournalEntry struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"sessionId"`
	Event          string        `json:"event"`
	Status         SessionStatus `json:"status"`
	RedirectTarget string        `json:"redirectTarget,omitempty"`
	ObserverCount  int           `json:"observerCount"`
	Timestamp      time.Time     `json:"timestamp"`
}
