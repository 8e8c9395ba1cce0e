package gwerrs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectionError(ErrCodeConnectFailed, "connect to gateway", cause)

	assert.Equal(t, "connection: connect to gateway: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodePredicates(t *testing.T) {
	notConnected := NewClientError(ErrCodeNotConnected, "not connected to gateway", nil)
	assert.True(t, IsNotConnected(notConnected))
	assert.False(t, IsNotConnected(errors.New("plain")))

	handshake := NewConnectionError(ErrCodeHandshakeTimeout, "no acknowledgement", nil)
	assert.True(t, IsHandshakeTimeout(handshake))

	// Predicates see through wrapping.
	wrapped := fmt.Errorf("connect: %w", handshake)
	assert.True(t, IsHandshakeTimeout(wrapped))
}

func TestFatalConnectionError(t *testing.T) {
	fatal := NewFatalConnectionError("connectivity lost", nil, 502)
	assert.True(t, IsFatal(fatal))
	assert.Equal(t, 502, fatal.Metadata()["gateway_code"])

	plain := NewConnectionError(ErrCodeConnectionClosed, "connection closed", nil)
	assert.False(t, IsFatal(plain))
}

func TestProtocolErrorMetadata(t *testing.T) {
	err := NewProtocolError(ErrCodeRequestRejected, "no security definition", nil).
		WithRequestID(1005).
		WithGatewayCode(200)

	assert.Equal(t, int64(1005), err.RequestID())
	assert.Equal(t, 200, err.GatewayCode())
	assert.Equal(t, CategoryProtocol, err.Category())

	gwErr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRequestRejected, gwErr.Code())
}

func TestIsCategory(t *testing.T) {
	assert.True(t, IsCategory(NewTransportError(ErrCodeReadFailed, "read", nil), CategoryTransport))
	assert.False(t, IsCategory(NewTransportError(ErrCodeReadFailed, "read", nil), CategoryClient))
	assert.False(t, IsCategory(errors.New("plain"), CategoryTransport))
}
