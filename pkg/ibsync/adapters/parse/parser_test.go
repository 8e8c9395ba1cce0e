package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
)

func TestParseDataFragment(t *testing.T) {
	a := NewAdapter()

	ev, err := a.Parse(map[string]any{
		"type":   "data",
		"req_id": float64(1001),
		"kind":   "historical_data",
		"payload": map[string]any{
			"close": 412.5,
		},
	})
	require.NoError(t, err)

	frag, ok := ev.(events.DataFragment)
	require.True(t, ok)
	assert.Equal(t, int64(1001), frag.RequestID)
	assert.Equal(t, events.KindHistoricalData, frag.Kind)
	assert.JSONEq(t, `{"close":412.5}`, string(frag.Payload))
}

func TestParseDataFragmentMissingRequestID(t *testing.T) {
	a := NewAdapter()

	_, err := a.Parse(map[string]any{
		"type":    "data",
		"payload": map[string]any{},
	})
	require.Error(t, err)

	gwErr, ok := gwerrs.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, gwerrs.ErrCodeMalformedEnvelope, gwErr.Code())
}

func TestParseEndOfStream(t *testing.T) {
	a := NewAdapter()

	ev, err := a.Parse(map[string]any{
		"type":   "end",
		"req_id": float64(42),
	})
	require.NoError(t, err)
	assert.Equal(t, events.EndOfStream{RequestID: 42}, ev)
}

func TestParseHandshakeAck(t *testing.T) {
	a := NewAdapter()

	ev, err := a.Parse(map[string]any{
		"type":           "handshake_ack",
		"session_id":     "abc-123",
		"next_order_id":  float64(17),
		"server_version": float64(176),
	})
	require.NoError(t, err)

	ack, ok := ev.(events.HandshakeAck)
	require.True(t, ok)
	assert.Equal(t, "abc-123", ack.SessionID)
	assert.Equal(t, int64(17), ack.NextOrderID)
	assert.Equal(t, 176, ack.ServerVersion)
}

func TestParseErrorEvent(t *testing.T) {
	t.Run("request scoped", func(t *testing.T) {
		ev, err := NewAdapter().Parse(map[string]any{
			"type":    "error",
			"req_id":  float64(1005),
			"code":    float64(200),
			"message": "No security definition found",
		})
		require.NoError(t, err)

		e, ok := ev.(events.ErrorEvent)
		require.True(t, ok)
		assert.Equal(t, int64(1005), e.RequestID)
		assert.Equal(t, 200, e.Code)
		assert.False(t, e.ConnectionScoped())
		assert.False(t, e.Fatal())
	})

	t.Run("fatal connectivity loss", func(t *testing.T) {
		ev, err := NewAdapter().Parse(map[string]any{
			"type":    "error",
			"code":    float64(events.CodeConnectivityLost),
			"message": "Connectivity between IB and TWS has been lost",
		})
		require.NoError(t, err)

		e, ok := ev.(events.ErrorEvent)
		require.True(t, ok)
		assert.True(t, e.ConnectionScoped())
		assert.True(t, e.Fatal())
	})
}

func TestParseRejectsMalformedEnvelopes(t *testing.T) {
	a := NewAdapter()

	for name, raw := range map[string]map[string]any{
		"missing type":    {"req_id": float64(1)},
		"non-string type": {"type": float64(3)},
		"unknown type":    {"type": "heartbeat"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Parse(raw)
			assert.Error(t, err)
		})
	}
}
