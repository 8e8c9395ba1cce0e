// Package options provides configuration for gateway connections.
// This package defines pure configuration; wiring happens in the client.
package options

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults applied by Normalize when a field is unset. The timeouts mirror
// the gateway's interactive defaults: a short handshake window and a
// longer window for data requests.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 7497
	DefaultClientID        = 1
	DefaultConnectTimeout  = 5 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultSnapshotTimeout = 5 * time.Second
	DefaultDisconnectGrace = 3 * time.Second
	DefaultMaxEventBytes   = 1024 * 1024 // 1MB
)

// GatewayOptions configures a gateway connection.
type GatewayOptions struct {
	// Host is the gateway host
	Host string
	// Port is the gateway API port
	Port int
	// ClientID distinguishes API clients sharing one gateway
	ClientID int

	// ConnectTimeout bounds dial plus handshake acknowledgement
	ConnectTimeout time.Duration
	// RequestTimeout is the default bound for list-shaped operations
	RequestTimeout time.Duration
	// SnapshotTimeout is the default bound for snapshot-style operations
	SnapshotTimeout time.Duration
	// DisconnectGrace bounds the reader join during Disconnect
	DisconnectGrace time.Duration

	// MaxEventBytes caps the size of a single inbound event
	MaxEventBytes int

	// Logger receives operational logging; nil discards everything
	Logger *logrus.Logger
}

// Normalize fills unset fields with defaults and returns the options.
func (o GatewayOptions) Normalize() GatewayOptions {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.ClientID == 0 {
		o.ClientID = DefaultClientID
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.SnapshotTimeout == 0 {
		o.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if o.DisconnectGrace == 0 {
		o.DisconnectGrace = DefaultDisconnectGrace
	}
	if o.MaxEventBytes == 0 {
		o.MaxEventBytes = DefaultMaxEventBytes
	}
	if o.Logger == nil {
		o.Logger = quietLogger()
	}

	return o
}

// Endpoint returns the host:port address of the gateway.
func (o GatewayOptions) Endpoint() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}
