// Package socket implements ports.Transport over a TCP session to the
// gateway. Events and requests are newline-delimited JSON envelopes; the
// envelope carries only routing information (type, kind, correlation id),
// payload semantics stay with the caller.
package socket

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/options"
	"github.com/conneroisu/ibsync/pkg/ibsync/ports"
)

// Adapter implements ports.Transport over a TCP connection.
// The adapter must be connected via Connect() before use.
type Adapter struct {
	opts      options.GatewayOptions
	log       *logrus.Logger
	conn      net.Conn
	sessionID string
	ready     bool
	mu        sync.RWMutex
}

// Verify interface compliance at compile time.
var _ ports.Transport = (*Adapter)(nil)

// NewAdapter creates a new socket transport adapter.
func NewAdapter(opts options.GatewayOptions) *Adapter {
	opts = opts.Normalize()

	return &Adapter{
		opts: opts,
		log:  opts.Logger,
	}
}

// SessionID returns the identity generated for the current session.
// Empty until Connect succeeds.
func (a *Adapter) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.sessionID
}

// IsReady returns true if the adapter is connected and ready.
func (a *Adapter) IsReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ready
}

// Connect dials the gateway and sends the handshake envelope. Dialing is
// retried with jittered backoff until the connect timeout is spent; the
// handshake acknowledgement arrives later on the event stream and is the
// connection manager's concern.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ready {
		return nil
	}

	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	a.conn = conn
	a.sessionID = uuid.NewString()

	handshake := map[string]any{
		fieldType:      typeHandshake,
		fieldClientID:  a.opts.ClientID,
		fieldSessionID: a.sessionID,
	}
	if err := a.writeEnvelopeLocked(handshake); err != nil {
		_ = conn.Close()
		a.conn = nil

		return gwerrs.NewTransportError(
			gwerrs.ErrCodeWriteFailed,
			"send handshake",
			err,
		)
	}

	a.ready = true
	a.log.WithFields(logrus.Fields{
		"endpoint":   a.opts.Endpoint(),
		"client_id":  a.opts.ClientID,
		"session_id": a.sessionID,
	}).Info("gateway session opened")

	return nil
}

func (a *Adapter) dial(ctx context.Context) (net.Conn, error) {
	deadline := time.Now().Add(a.opts.ConnectTimeout)
	b := &backoff.Backoff{
		Factor: 1.25,
		Jitter: true,
		Min:    50 * time.Millisecond,
		Max:    500 * time.Millisecond,
	}

	var lastErr error
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, gwerrs.NewTransportError(
				gwerrs.ErrCodeDialFailed,
				"dial "+a.opts.Endpoint(),
				lastErr,
			)
		}

		d := net.Dialer{Timeout: remaining}
		conn, err := d.DialContext(ctx, "tcp", a.opts.Endpoint())
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, gwerrs.NewTransportError(
				gwerrs.ErrCodeDialFailed,
				"dial "+a.opts.Endpoint(),
				ctx.Err(),
			)
		}

		pause := b.Duration()
		if pause > time.Until(deadline) {
			pause = time.Until(deadline)
		}
		a.log.WithField("endpoint", a.opts.Endpoint()).
			WithError(err).
			Debugf("dial failed, retrying in %s", pause)
		time.Sleep(pause)
	}
}

// Close terminates the session and releases the socket. Closing unblocks
// any pending read.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ready = false

	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil

		return err
	}

	return nil
}
