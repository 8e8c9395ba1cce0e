// Package parse converts raw transport events into the closed set of
// typed gateway events.
package parse

import (
	"encoding/json"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/ports"
)

// Wire-level field and type names of the event envelope.
const (
	fieldType      = "type"
	fieldRequestID = "req_id"
	fieldKind      = "kind"
	fieldPayload   = "payload"
	fieldSessionID = "session_id"
	fieldNextOrder = "next_order_id"
	fieldVersion   = "server_version"
	fieldCode      = "code"
	fieldMessage   = "message"

	typeData         = "data"
	typeEnd          = "end"
	typeHandshakeAck = "handshake_ack"
	typeError        = "error"
)

// Adapter implements ports.EventParser.
// This is an INFRASTRUCTURE adapter - it handles low-level event decoding.
type Adapter struct{}

// Verify interface compliance at compile time.
var _ ports.EventParser = (*Adapter)(nil)

// NewAdapter creates a new event parser.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Parse implements ports.EventParser.
func (a *Adapter) Parse(raw map[string]any) (events.Event, error) {
	eventType, ok := raw[fieldType].(string)
	if !ok {
		return nil, gwerrs.NewProtocolError(
			gwerrs.ErrCodeMalformedEnvelope,
			"event missing type field",
			nil,
		)
	}

	switch eventType {
	case typeData:
		return a.parseDataFragment(raw)
	case typeEnd:
		return events.EndOfStream{RequestID: intField(raw, fieldRequestID)}, nil
	case typeHandshakeAck:
		return a.parseHandshakeAck(raw)
	case typeError:
		return a.parseError(raw)
	default:
		return nil, gwerrs.NewProtocolError(
			gwerrs.ErrCodeUnknownEventType,
			"unknown event type: "+eventType,
			nil,
		)
	}
}

func (a *Adapter) parseDataFragment(raw map[string]any) (events.Event, error) {
	id := intField(raw, fieldRequestID)
	if id == 0 {
		return nil, gwerrs.NewProtocolError(
			gwerrs.ErrCodeMalformedEnvelope,
			"data fragment missing req_id",
			nil,
		)
	}

	kind, _ := raw[fieldKind].(string)

	// Re-marshal the payload so the operation layer can decode it into
	// its own record type.
	var payload json.RawMessage
	if body, ok := raw[fieldPayload]; ok {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, gwerrs.NewProtocolError(
				gwerrs.ErrCodeEventParseFailed,
				"encode fragment payload",
				err,
			).WithRequestID(id)
		}
		payload = encoded
	}

	return events.DataFragment{
		RequestID: id,
		Kind:      events.RequestKind(kind),
		Payload:   payload,
	}, nil
}

func (a *Adapter) parseHandshakeAck(raw map[string]any) (events.Event, error) {
	sessionID, _ := raw[fieldSessionID].(string)

	return events.HandshakeAck{
		SessionID:     sessionID,
		NextOrderID:   intField(raw, fieldNextOrder),
		ServerVersion: int(intField(raw, fieldVersion)),
	}, nil
}

func (a *Adapter) parseError(raw map[string]any) (events.Event, error) {
	message, _ := raw[fieldMessage].(string)

	return events.ErrorEvent{
		RequestID: intField(raw, fieldRequestID),
		Code:      int(intField(raw, fieldCode)),
		Message:   message,
	}, nil
}

// intField reads a numeric field that may arrive as float64 (generic JSON
// decoding) or json.Number.
func intField(raw map[string]any, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}

		return n
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
