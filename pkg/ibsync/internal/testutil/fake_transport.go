// Package testutil provides test doubles for hermetic client testing.
package testutil

import (
	"context"
	"sync"

	"github.com/conneroisu/ibsync/pkg/ibsync/events"
)

// SentRequest records one Send call observed by the fake transport.
type SentRequest struct {
	Kind      events.RequestKind
	RequestID int64
	Params    any
}

// FakeTransport simulates the gateway session for hermetic testing. It
// records sends and cancels, emits scripted events on the read channels,
// and never touches the network.
type FakeTransport struct {
	mu        sync.Mutex
	connected bool
	closed    bool

	sent      []SentRequest
	cancelled []int64

	connectErr error
	sendErr    error

	// OnSend, when set, is invoked for every Send and its returned
	// events are emitted on the event stream, simulating a scripted
	// gateway.
	OnSend func(req SentRequest) []map[string]any

	eventCh chan map[string]any
	errCh   chan error
}

// NewFakeTransport creates a disconnected fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		eventCh: make(chan map[string]any, 64),
		errCh:   make(chan error, 1),
	}
}

// FailConnect makes the next Connect return err.
func (f *FakeTransport) FailConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// FailSend makes every Send return err.
func (f *FakeTransport) FailSend(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// Connect marks the transport ready.
func (f *FakeTransport) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true

	return nil
}

// Send records the request and emits any scripted response events.
func (f *FakeTransport) Send(_ context.Context, kind events.RequestKind, requestID int64, params any) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()

		return err
	}
	req := SentRequest{Kind: kind, RequestID: requestID, Params: params}
	f.sent = append(f.sent, req)
	script := f.OnSend
	f.mu.Unlock()

	if script != nil {
		for _, ev := range script(req) {
			f.Emit(ev)
		}
	}

	return nil
}

// Cancel records the cancellation.
func (f *FakeTransport) Cancel(_ context.Context, requestID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, requestID)

	return nil
}

// ReadEvents returns the scripted event stream.
func (f *FakeTransport) ReadEvents(_ context.Context) (<-chan map[string]any, <-chan error) {
	return f.eventCh, f.errCh
}

// Close ends the event stream. Safe to call repeatedly.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.connected = false
	close(f.eventCh)
	close(f.errCh)

	return nil
}

// IsReady reports whether Connect succeeded and Close has not been
// called.
func (f *FakeTransport) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

// Emit delivers one raw event on the stream. A no-op after Close, so
// scripted goroutines cannot panic during teardown.
func (f *FakeTransport) Emit(raw map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.eventCh <- raw
}

// EmitError delivers one transport error on the stream.
func (f *FakeTransport) EmitError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.errCh <- err
}

// Sent returns a copy of the recorded Send calls.
func (f *FakeTransport) Sent() []SentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]SentRequest, len(f.sent))
	copy(out, f.sent)

	return out
}

// Cancelled returns a copy of the recorded Cancel calls.
func (f *FakeTransport) Cancelled() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]int64, len(f.cancelled))
	copy(out, f.cancelled)

	return out
}
