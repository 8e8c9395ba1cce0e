package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	opts := GatewayOptions{}.Normalize()

	assert.Equal(t, DefaultHost, opts.Host)
	assert.Equal(t, DefaultPort, opts.Port)
	assert.Equal(t, DefaultClientID, opts.ClientID)
	assert.Equal(t, DefaultConnectTimeout, opts.ConnectTimeout)
	assert.Equal(t, DefaultRequestTimeout, opts.RequestTimeout)
	assert.Equal(t, DefaultSnapshotTimeout, opts.SnapshotTimeout)
	assert.Equal(t, DefaultDisconnectGrace, opts.DisconnectGrace)
	assert.Equal(t, DefaultMaxEventBytes, opts.MaxEventBytes)
	assert.NotNil(t, opts.Logger)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	opts := GatewayOptions{
		Host:           "gateway.internal",
		Port:           4002,
		ClientID:       9,
		ConnectTimeout: time.Minute,
	}.Normalize()

	assert.Equal(t, "gateway.internal", opts.Host)
	assert.Equal(t, 4002, opts.Port)
	assert.Equal(t, 9, opts.ClientID)
	assert.Equal(t, time.Minute, opts.ConnectTimeout)
	// Unset fields still get defaults.
	assert.Equal(t, DefaultRequestTimeout, opts.RequestTimeout)
}

func TestEndpoint(t *testing.T) {
	opts := GatewayOptions{Host: "127.0.0.1", Port: 7497}

	assert.Equal(t, "127.0.0.1:7497", opts.Endpoint())
}
