package ibsync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/registry"
)

// dispatchLoop is the single background reader for one connection. It
// consumes the transport's event stream strictly sequentially, so events
// for a given correlation id reach its registry entry in arrival order.
// The loop exits when the context is cancelled or the stream ends.
func (c *Client) dispatchLoop(
	ctx context.Context,
	done chan<- struct{},
	handshakeCh chan<- events.HandshakeAck,
) {
	defer close(done)

	msgCh, errCh := c.transport.ReadEvents(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-msgCh:
			if !ok {
				// Stream ended without local shutdown: the
				// session is gone.
				c.onFatal(gwerrs.NewFatalConnectionError(
					"gateway event stream closed",
					nil,
					0,
				))

				return
			}

			ev, err := c.parser.Parse(raw)
			if err != nil {
				c.log.WithError(err).Debug("dropping unparseable event")

				continue
			}
			c.handleEvent(ctx, ev, handshakeCh)

		case err, ok := <-errCh:
			if !ok {
				errCh = nil

				continue
			}
			if err != nil {
				c.onFatal(gwerrs.NewFatalConnectionError(
					"gateway transport failure",
					err,
					0,
				))

				return
			}
		}
	}
}

// handleEvent routes one event through the handler table. The event set
// is closed; anything else is a programming error in the parser and is
// dropped.
func (c *Client) handleEvent(
	ctx context.Context,
	ev events.Event,
	handshakeCh chan<- events.HandshakeAck,
) {
	switch e := ev.(type) {
	case events.DataFragment:
		c.handleDataFragment(ctx, e)
	case events.EndOfStream:
		c.handleEndOfStream(e)
	case events.HandshakeAck:
		select {
		case handshakeCh <- e:
		default:
			c.log.Debug("duplicate handshake acknowledgement dropped")
		}
	case events.ErrorEvent:
		c.handleErrorEvent(e)
	default:
		c.log.WithField("event", ev).Debug("unhandled event variant")
	}
}

// handleDataFragment appends a fragment to its entry. For first-of-many
// requests the first fragment resolves the call, and a best-effort
// cancellation is sent so the gateway stops producing.
func (c *Client) handleDataFragment(ctx context.Context, e events.DataFragment) {
	shape, outcome := c.pending.Append(e.RequestID, e.Payload)

	switch outcome {
	case registry.AppendDropped:
		c.log.WithFields(logrus.Fields{
			"req_id": e.RequestID,
			"kind":   e.Kind,
		}).Debug("late fragment for removed request dropped")

	case registry.AppendResolved:
		if shape == registry.FirstOfMany {
			if err := c.transport.Cancel(ctx, e.RequestID); err != nil {
				c.log.WithError(err).
					WithField("req_id", e.RequestID).
					Debug("best-effort cancel failed")
			}
		}

	case registry.AppendBuffered:
		// Still streaming.
	}
}

func (c *Client) handleEndOfStream(e events.EndOfStream) {
	if !c.pending.Complete(e.RequestID) {
		c.log.WithField("req_id", e.RequestID).
			Debug("stray end-of-stream sentinel dropped")
	}
}

// handleErrorEvent fails the matching entry for request-scoped errors
// and escalates connection-fatal ones.
func (c *Client) handleErrorEvent(e events.ErrorEvent) {
	if e.Fatal() {
		c.onFatal(gwerrs.NewFatalConnectionError(e.Message, nil, e.Code))

		return
	}

	if e.ConnectionScoped() {
		c.log.WithFields(logrus.Fields{
			"code":    e.Code,
			"message": e.Message,
		}).Warn("gateway reported connection-scoped error")

		return
	}

	failed := c.pending.Fail(e.RequestID, gwerrs.NewProtocolError(
		gwerrs.ErrCodeRequestRejected,
		e.Message,
		nil,
	).WithRequestID(e.RequestID).WithGatewayCode(e.Code))

	if !failed {
		c.log.WithFields(logrus.Fields{
			"req_id": e.RequestID,
			"code":   e.Code,
		}).Debug("error for unknown request dropped")
	}
}

// onFatal marks the session dead and resolves every pending request, so
// unrelated callers cannot deadlock on a connection that will never
// produce their events.
func (c *Client) onFatal(err *gwerrs.ConnectionError) {
	switch c.State() {
	case StateClosing:
		// Graceful shutdown already in progress; Disconnect owns
		// the broadcast.
		return
	case StateDisconnected:
		// Already torn down; the stream-closed event that follows a
		// fatal error must not broadcast twice.
		return
	}

	c.state.Store(int32(StateDisconnected))
	n := c.pending.BroadcastFatal(err)
	_ = c.transport.Close()

	c.log.WithError(err).
		WithField("pending", n).
		Warn("gateway session lost")
}
