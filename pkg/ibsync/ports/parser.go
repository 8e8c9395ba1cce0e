package ports

import "github.com/conneroisu/ibsync/pkg/ibsync/events"

// EventParser converts raw transport events to domain event types.
// This port defines what the dispatcher needs for event decoding,
// without coupling to specific JSON unmarshaling implementations.
//
// Error Handling: Parse returns typed errors for different failure modes:
// - Unknown event types return an error
// - Malformed envelopes return an error
// - Missing required fields return an error
//
// Type Discrimination: the parser must return exactly one of the closed
// set of event variants in the events package.
type EventParser interface {
	// Parse converts a raw event map to a typed Event.
	// Returns an error if the event type is unknown or the structure
	// is invalid.
	Parse(raw map[string]any) (events.Event, error)
}
