package testutil

import "github.com/conneroisu/ibsync/pkg/ibsync/events"

// Raw event builders matching the gateway's wire envelope, for feeding
// the fake transport.

// HandshakeAckEvent builds a handshake acknowledgement envelope.
func HandshakeAckEvent(sessionID string, nextOrderID int64) map[string]any {
	return map[string]any{
		"type":           "handshake_ack",
		"session_id":     sessionID,
		"next_order_id":  nextOrderID,
		"server_version": 176,
	}
}

// DataEvent builds a data fragment envelope.
func DataEvent(requestID int64, kind events.RequestKind, payload any) map[string]any {
	return map[string]any{
		"type":    "data",
		"req_id":  requestID,
		"kind":    string(kind),
		"payload": payload,
	}
}

// EndEvent builds an end-of-stream sentinel envelope.
func EndEvent(requestID int64) map[string]any {
	return map[string]any{
		"type":   "end",
		"req_id": requestID,
	}
}

// ErrorEvent builds an error envelope. requestID 0 means
// connection-scoped.
func ErrorEvent(requestID int64, code int, message string) map[string]any {
	return map[string]any{
		"type":    "error",
		"req_id":  requestID,
		"code":    code,
		"message": message,
	}
}
