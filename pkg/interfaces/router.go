package interfaces

import (
	"context"

	"sessionrelay/pkg/types"
)

// SignalRouter dispatches inbound push-channel signals
type SignalRouter interface {
	// RouteSignal applies one signal sent by conn
	RouteSignal(ctx context.Context, conn Connection, signal *types.Signal) error
}
