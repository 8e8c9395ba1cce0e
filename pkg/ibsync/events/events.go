// Package events provides the domain model for the gateway's asynchronous
// event stream. The gateway delivers exactly four event varieties: data
// fragments tagged with a correlation id, end-of-stream sentinels,
// the handshake acknowledgement, and error events that are either scoped
// to one request or to the whole session.
package events

import "encoding/json"

// Event is the root interface for all gateway events.
// All event types implement this interface to enable
// type-safe routing in the dispatcher's handler table.
type Event interface {
	// event is a marker method for type safety
	event()
}

// DataFragment carries one unit of response data for an in-flight request.
// The payload stays opaque JSON at this layer; the operation that issued
// the request knows how to decode it.
type DataFragment struct {
	// RequestID is the correlation id tying the fragment to its request
	RequestID int64
	// Kind identifies the request family the fragment belongs to
	Kind RequestKind
	// Payload is the undecoded fragment body
	Payload json.RawMessage
}

func (DataFragment) event() {}

// EndOfStream marks that no further fragments will arrive for a request.
type EndOfStream struct {
	// RequestID is the correlation id the sentinel closes out
	RequestID int64
}

func (EndOfStream) event() {}

// HandshakeAck acknowledges a successful session handshake.
// Receiving it transitions the connection from Connecting to Connected.
type HandshakeAck struct {
	// SessionID is the gateway-assigned session identifier
	SessionID string
	// NextOrderID seeds the client's order id sequence
	NextOrderID int64
	// ServerVersion is the gateway protocol version
	ServerVersion int
}

func (HandshakeAck) event() {}

// ErrorEvent reports a gateway-side failure. A zero RequestID means the
// error is connection-scoped rather than tied to a specific request.
type ErrorEvent struct {
	// RequestID is the correlation id the error applies to, 0 if none
	RequestID int64
	// Code is the gateway's numeric error code
	Code int
	// Message is the gateway's error text
	Message string
}

func (ErrorEvent) event() {}

// ConnectionScoped reports whether the error is not tied to any request.
func (e ErrorEvent) ConnectionScoped() bool {
	return e.RequestID == 0
}

// Gateway codes that indicate the session itself is no longer usable.
// 502 is "couldn't connect", 504 is "not connected"; both mean any
// pending request would otherwise wait forever.
const (
	CodeConnectivityLost = 502
	CodeNotConnected     = 504
)

// Fatal reports whether the error ends the session.
func (e ErrorEvent) Fatal() bool {
	return e.Code == CodeConnectivityLost || e.Code == CodeNotConnected
}
