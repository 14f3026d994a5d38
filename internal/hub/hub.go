package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sessionrelay/pkg/interfaces"
	"sessionrelay/pkg/types"
)

// Hub is the fanout broadcaster for push events
// ARCHITECTURAL DISCOVERY: Delivery is enqueue-only. Each connection owns a
// bounded send buffer and writer goroutine, so a fanout never waits on a
// peer and can run inside the lifecycle critical section
type Hub struct {
	registry interfaces.ObserverRegistry
	logger   *slog.Logger
	now      func() time.Time
}

// delivery is the outcome of one per-connection send
type delivery struct {
	connectionID string
	err          error
}

// NewHub creates a broadcaster over the given registry
func NewHub(registry interfaces.ObserverRegistry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		logger:   logger.With("component", "hub"),
		now:      time.Now,
	}
}

// Broadcast delivers event to every observer present at call time
func (h *Hub) Broadcast(event string, payload any) types.DeliveryReport {
	return h.fanout(event, payload, h.registry.Members())
}

// Unicast delivers event to one connection
func (h *Hub) Unicast(conn interfaces.Connection, event string, payload any) types.DeliveryReport {
	if conn == nil {
		return types.DeliveryReport{}
	}
	return h.fanout(event, payload, []interfaces.Connection{conn})
}

// NotifyProducer delivers event to every connection bound to sessionID
func (h *Hub) NotifyProducer(sessionID string, event string, payload any) types.DeliveryReport {
	return h.fanout(event, payload, h.registry.ProducerConnections(sessionID))
}

// fanout encodes the envelope once and hands the bytes to each target
// FUNCTIONAL DISCOVERY: Every target is attempted regardless of earlier
// failures; failures are logged here and only counted in the report
func (h *Hub) fanout(event string, payload any, targets []interfaces.Connection) types.DeliveryReport {
	report := types.DeliveryReport{Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	data, err := h.encode(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		report.Failed = len(targets)
		return report
	}

	for _, target := range targets {
		result := send(target, data)
		if result.err != nil {
			report.Failed++
			h.logger.Warn("event delivery failed",
				"event", event,
				"connection_id", result.connectionID,
				"error", result.err)
			continue
		}
		report.Delivered++
	}

	h.logger.Debug("event delivered",
		"event", event,
		"attempted", report.Attempted,
		"delivered", report.Delivered)
	return report
}

// send isolates a single write, including a panicking connection
func send(target interfaces.Connection, data []byte) (result delivery) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("%w: %v", ErrDeliveryPanic, r)
		}
	}()
	result.connectionID = target.ID()
	result.err = target.WriteRaw(data)
	return result
}

func (h *Hub) encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(types.Envelope{
		Event:     event,
		Data:      payload,
		Timestamp: h.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return data, nil
}

var _ interfaces.Notifier = (*Hub)(nil)
