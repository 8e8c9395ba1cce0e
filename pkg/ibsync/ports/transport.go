// Package ports defines interfaces that the domain needs from
// infrastructure. These are "ports" in hexagonal architecture - contracts
// defined by domain needs, not by external systems.
package ports

import (
	"context"

	"github.com/conneroisu/ibsync/pkg/ibsync/events"
)

// Transport defines what the domain needs from the gateway session layer.
// Implementations own the wire encoding; the domain never sees raw bytes,
// only the event stream and the request/cancel sends.
type Transport interface {
	// Connect establishes the session to the gateway endpoint
	Connect(ctx context.Context) error

	// Send issues a request under the given correlation id.
	// Params are marshaled by the transport; a nil params sends an
	// empty parameter set.
	Send(ctx context.Context, kind events.RequestKind, requestID int64, params any) error

	// Cancel sends a best-effort cancellation for a correlation id.
	// The gateway is free to ignore it.
	Cancel(ctx context.Context, requestID int64) error

	// ReadEvents returns channels for incoming raw events and errors.
	// Both channels close when the session ends.
	ReadEvents(ctx context.Context) (<-chan map[string]any, <-chan error)

	// Close terminates the session
	Close() error

	// IsReady checks if the transport is ready to send
	IsReady() bool
}
