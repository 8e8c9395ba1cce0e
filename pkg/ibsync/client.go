package ibsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/adapters/parse"
	"github.com/conneroisu/ibsync/pkg/ibsync/adapters/socket"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
	"github.com/conneroisu/ibsync/pkg/ibsync/options"
	"github.com/conneroisu/ibsync/pkg/ibsync/ports"
	"github.com/conneroisu/ibsync/pkg/ibsync/registry"
)

// Public type aliases for convenience.
type (
	GatewayOptions = options.GatewayOptions
	Contract       = market.Contract
	Order          = market.Order
)

// Request ids issued by a client start above this floor, keeping them
// visually distinct from gateway-assigned order ids in logs.
const requestIDFloor = 1000

// ConnState is the lifecycle state of a client's gateway connection.
type ConnState int32

const (
	// StateDisconnected means no session exists.
	StateDisconnected ConnState = iota
	// StateConnecting means the session is dialing or awaiting the
	// handshake acknowledgement.
	StateConnecting
	// StateConnected means the session is established and operations
	// may be issued.
	StateConnected
	// StateClosing means Disconnect is tearing the session down.
	StateClosing
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Client provides the synchronous interface to the gateway.
// This facade owns the connection lifecycle, the pending-request
// registry and the dispatcher goroutine.
type Client struct {
	opts      options.GatewayOptions
	log       *logrus.Logger
	transport ports.Transport
	parser    ports.EventParser

	reqIDs   *registry.Allocator
	orderIDs *registry.Allocator
	pending  *registry.Registry

	state atomic.Int32

	// lifecycleMu serializes Connect and Disconnect; it is never held
	// while an operation is blocked waiting.
	lifecycleMu sync.Mutex

	handshakeCh  chan events.HandshakeAck
	readerDone   chan struct{}
	readerCancel context.CancelFunc

	sessionID string
}

// NewClient creates a client speaking to the gateway over the built-in
// socket transport.
func NewClient(opts options.GatewayOptions) *Client {
	opts = opts.Normalize()

	return NewClientWithTransport(opts, socket.NewAdapter(opts), parse.NewAdapter())
}

// NewClientWithTransport creates a client over a caller-supplied
// transport and parser, for callers that bring their own session layer.
func NewClientWithTransport(
	opts options.GatewayOptions,
	transport ports.Transport,
	parser ports.EventParser,
) *Client {
	opts = opts.Normalize()

	return &Client{
		opts:      opts,
		log:       opts.Logger,
		transport: transport,
		parser:    parser,
		reqIDs:    registry.NewAllocator(requestIDFloor),
		orderIDs:  registry.NewAllocator(0),
		pending:   registry.New(),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// IsConnected reports whether the session is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// SessionID returns the gateway-assigned session identifier, empty until
// connected.
func (c *Client) SessionID() string {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	return c.sessionID
}

// NextOrderID returns the next order id in the client's sequence, seeded
// by the handshake acknowledgement.
func (c *Client) NextOrderID() int64 {
	return c.orderIDs.Next()
}

// Connect establishes the gateway session: it dials the transport,
// starts the dispatcher goroutine, and then waits for the handshake
// acknowledgement. The reader must be running before the wait, since the
// acknowledgement arrives on the event stream. If the acknowledgement
// does not arrive within the connect timeout the session is torn down
// and no goroutine is leaked.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.State() == StateConnected {
		return nil
	}

	deadline := time.Now().Add(c.opts.ConnectTimeout)
	c.state.Store(int32(StateConnecting))

	if err := c.transport.Connect(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))

		return gwerrs.NewConnectionError(
			gwerrs.ErrCodeConnectFailed,
			"connect to gateway",
			err,
		).WithEndpoint(c.opts.Endpoint())
	}

	c.handshakeCh = make(chan events.HandshakeAck, 1)
	c.readerDone = make(chan struct{})
	readerCtx, cancel := context.WithCancel(context.Background())
	c.readerCancel = cancel

	go c.dispatchLoop(readerCtx, c.readerDone, c.handshakeCh)

	t := time.NewTimer(time.Until(deadline))
	defer t.Stop()

	select {
	case ack := <-c.handshakeCh:
		c.sessionID = ack.SessionID
		c.orderIDs.Seed(ack.NextOrderID)
		c.state.Store(int32(StateConnected))
		c.log.WithFields(logrus.Fields{
			"session_id":    c.sessionID,
			"next_order_id": ack.NextOrderID,
		}).Info("connected to gateway")

		return nil

	case <-t.C:
		c.teardownLocked()

		return gwerrs.NewConnectionError(
			gwerrs.ErrCodeHandshakeTimeout,
			"no handshake acknowledgement within connect timeout",
			nil,
		).WithEndpoint(c.opts.Endpoint())

	case <-ctx.Done():
		c.teardownLocked()

		return gwerrs.NewConnectionError(
			gwerrs.ErrCodeConnectFailed,
			"connect cancelled",
			ctx.Err(),
		).WithEndpoint(c.opts.Endpoint())
	}
}

// Disconnect signals shutdown, joins the reader goroutine within the
// configured grace period, resolves any still-pending requests, and
// clears state regardless of prior success. Safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.State() == StateDisconnected {
		return nil
	}

	c.state.Store(int32(StateClosing))
	c.teardownLocked()
	c.log.Info("disconnected from gateway")

	return nil
}

// Close is an alias for Disconnect, satisfying io.Closer-style callers.
func (c *Client) Close() error {
	return c.Disconnect()
}

// teardownLocked tears the session down. Callers must hold lifecycleMu.
func (c *Client) teardownLocked() {
	if c.readerCancel != nil {
		c.readerCancel()
		c.readerCancel = nil
	}
	_ = c.transport.Close()

	if c.readerDone != nil {
		t := time.NewTimer(c.opts.DisconnectGrace)
		select {
		case <-c.readerDone:
		case <-t.C:
			c.log.Warn("reader did not exit within disconnect grace period")
		}
		t.Stop()
		c.readerDone = nil
	}

	// Unblock anyone still parked on a pending request.
	if n := c.pending.BroadcastFatal(gwerrs.NewConnectionError(
		gwerrs.ErrCodeConnectionClosed,
		"connection closed",
		nil,
	)); n > 0 {
		c.log.WithField("pending", n).Info("resolved pending requests on close")
	}

	c.sessionID = ""
	c.state.Store(int32(StateDisconnected))
}
