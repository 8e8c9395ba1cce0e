package ibsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/adapters/parse"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/internal/testutil"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
	"github.com/conneroisu/ibsync/pkg/ibsync/options"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() options.GatewayOptions {
	return options.GatewayOptions{
		ConnectTimeout:  200 * time.Millisecond,
		RequestTimeout:  200 * time.Millisecond,
		SnapshotTimeout: 200 * time.Millisecond,
		DisconnectGrace: time.Second,
	}
}

// newConnectedClient builds a client over a fake transport with the
// handshake already acknowledged, and tears it down with the test.
func newConnectedClient(t *testing.T) (*Client, *testutil.FakeTransport) {
	t.Helper()

	ft := testutil.NewFakeTransport()
	ft.Emit(testutil.HandshakeAckEvent("session-1", 50))

	c := NewClientWithTransport(testOptions(), ft, parse.NewAdapter())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Disconnect() })

	return c, ft
}

func TestConnectEstablishesSession(t *testing.T) {
	c, _ := newConnectedClient(t)

	assert.Equal(t, StateConnected, c.State())
	assert.True(t, c.IsConnected())
	assert.Equal(t, "session-1", c.SessionID())
	// Order ids continue from the acknowledged floor.
	assert.Equal(t, int64(51), c.NextOrderID())
}

func TestConnectIsIdempotent(t *testing.T) {
	c, _ := newConnectedClient(t)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())
}

func TestConnectHandshakeTimeout(t *testing.T) {
	ft := testutil.NewFakeTransport()
	c := NewClientWithTransport(testOptions(), ft, parse.NewAdapter())

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, gwerrs.IsHandshakeTimeout(err))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectDialFailure(t *testing.T) {
	ft := testutil.NewFakeTransport()
	ft.FailConnect(errors.New("connection refused"))
	c := NewClientWithTransport(testOptions(), ft, parse.NewAdapter())

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestOperationRequiresConnection(t *testing.T) {
	c := NewClientWithTransport(testOptions(), testutil.NewFakeTransport(), parse.NewAdapter())

	_, err := c.Positions(context.Background())
	require.Error(t, err)
	assert.True(t, gwerrs.IsNotConnected(err))
}

func TestHistoricalDataCollectsUntilSentinel(t *testing.T) {
	c, ft := newConnectedClient(t)

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 410.0}),
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 411.5}),
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 412.25}),
			testutil.EndEvent(req.RequestID),
		}
	}

	bars, err := c.HistoricalData(context.Background(), HistoricalDataRequest{
		Contract: market.USStock("SPY"),
		Duration: "3 D",
		BarSize:  "1 day",
	})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	// Fragment arrival order is the result order.
	assert.Equal(t, 410.0, bars[0].Close)
	assert.Equal(t, 411.5, bars[1].Close)
	assert.Equal(t, 412.25, bars[2].Close)
}

func TestConcurrentRequestsDoNotCrossTalk(t *testing.T) {
	c, ft := newConnectedClient(t)

	positionsStarted := make(chan int64, 1)
	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		switch req.Kind {
		case events.KindPositions:
			positionsStarted <- req.RequestID

			return nil
		case events.KindExecutions:
			// Deliver rows for both in-flight requests interleaved,
			// then close both streams.
			posID := <-positionsStarted

			return []map[string]any{
				testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"exec_id": "e1"}),
				testutil.DataEvent(posID, events.KindPositions, map[string]any{"account": "DU1", "position": 100}),
				testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"exec_id": "e2"}),
				testutil.EndEvent(posID),
				testutil.EndEvent(req.RequestID),
			}
		default:
			return nil
		}
	}

	type posResult struct {
		rows []market.Position
		err  error
	}
	posCh := make(chan posResult, 1)
	go func() {
		rows, err := c.Positions(context.Background())
		posCh <- posResult{rows, err}
	}()

	execs, err := c.Executions(context.Background(), ExecutionFilter{})
	require.NoError(t, err)

	pos := <-posCh
	require.NoError(t, pos.err)

	require.Len(t, execs, 2)
	assert.Equal(t, "e1", execs[0].ExecID)
	assert.Equal(t, "e2", execs[1].ExecID)

	require.Len(t, pos.rows, 1)
	assert.Equal(t, int64(100), pos.rows[0].Position)
}

func TestRealTimeBarFirstWins(t *testing.T) {
	c, ft := newConnectedClient(t)

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 100.0}),
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 101.0}),
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"close": 102.0}),
		}
	}

	bar, err := c.RealTimeBar(context.Background(), market.USStock("SPY"), "")
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, 100.0, bar.Close)

	sent := ft.Sent()
	require.Len(t, sent, 1)

	// The dispatcher stops the stream with exactly one best-effort
	// cancel; the extra fragments are dropped.
	assert.Eventually(t, func() bool {
		cancelled := ft.Cancelled()

		return len(cancelled) == 1 && cancelled[0] == sent[0].RequestID
	}, time.Second, 5*time.Millisecond)
}

func TestMarketSnapshotReducesTicks(t *testing.T) {
	c, ft := newConnectedClient(t)

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"tick_type": market.TickBid, "price": 99.0}),
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"tick_type": market.TickAsk, "price": 101.0}),
			testutil.EndEvent(req.RequestID),
		}
	}

	price, err := c.LastPrice(context.Background(), market.USStock("SPY"))
	require.NoError(t, err)
	// No last trade: midpoint of bid and ask.
	assert.Equal(t, 100.0, price)
}

func TestRequestTimeoutDegradesToEmpty(t *testing.T) {
	c, ft := newConnectedClient(t)

	// Script emits nothing; the request can only time out.
	positions, err := c.Positions(context.Background())
	require.NoError(t, err, "timeout is not an error")
	assert.Empty(t, positions)

	// The entry is gone and the gateway was told to stop.
	assert.Equal(t, 0, c.pending.Len())
	sent := ft.Sent()
	require.Len(t, sent, 1)
	cancelled := ft.Cancelled()
	require.Len(t, cancelled, 1)
	assert.Equal(t, sent[0].RequestID, cancelled[0])
}

func TestLateEventsAfterTimeoutAreDropped(t *testing.T) {
	c, ft := newConnectedClient(t)

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	sent := ft.Sent()
	require.Len(t, sent, 1)

	// Late data for the abandoned id must not disturb a fresh request.
	ft.Emit(testutil.DataEvent(sent[0].RequestID, events.KindPositions, map[string]any{"position": 999}))
	ft.Emit(testutil.EndEvent(sent[0].RequestID))

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.DataEvent(req.RequestID, req.Kind, map[string]any{"account": "DU1", "position": 5}),
			testutil.EndEvent(req.RequestID),
		}
	}

	fresh, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, int64(5), fresh[0].Position)
}

func TestSendFailureDegradesToEmpty(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.FailSend(errors.New("broken pipe"))

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, 0, c.pending.Len())
}

func TestRequestScopedErrorDegradesToEmpty(t *testing.T) {
	c, ft := newConnectedClient(t)

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.ErrorEvent(req.RequestID, 200, "No security definition found"),
		}
	}

	details, err := c.ContractDetails(context.Background(), market.USStock("NOPE"))
	require.NoError(t, err)
	assert.Empty(t, details)

	// The session survives a request-scoped error.
	assert.True(t, c.IsConnected())
}

func TestFatalGatewayErrorUnblocksAllPending(t *testing.T) {
	c, ft := newConnectedClient(t)

	results := make(chan error, 3)
	for _, op := range []func() error{
		func() error { _, err := c.Positions(context.Background()); return err },
		func() error { _, err := c.OrderStatus(context.Background(), 1); return err },
		func() error { _, err := c.NewsBulletin(context.Background()); return err },
	} {
		go func() { results <- op() }()
	}

	// Wait for all three to be in flight, then kill the session.
	require.Eventually(t, func() bool {
		return c.pending.Len() == 3
	}, time.Second, 5*time.Millisecond)

	ft.Emit(testutil.ErrorEvent(0, events.CodeConnectivityLost, "Connectivity between IB and TWS has been lost"))

	for range 3 {
		select {
		case err := <-results:
			assert.NoError(t, err, "pending callers degrade to empty results")
		case <-time.After(time.Second):
			t.Fatal("pending operation not unblocked by fatal error")
		}
	}

	assert.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	_, err := c.Positions(context.Background())
	assert.True(t, gwerrs.IsNotConnected(err))
}

func TestCallerContextCancellation(t *testing.T) {
	c, _ := newConnectedClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Positions(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.pending.Len())
}

func TestDisconnectResolvesPending(t *testing.T) {
	c, _ := newConnectedClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Positions(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return c.pending.Len() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, c.SessionID())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending operation not resolved by disconnect")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c, _ := newConnectedClient(t)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestPlaceOrderAssignsSequentialIDs(t *testing.T) {
	c, ft := newConnectedClient(t)

	spy := market.USStock("SPY")
	first, err := c.PlaceOrder(context.Background(), spy, market.MarketOrder(100, "t1"))
	require.NoError(t, err)
	second, err := c.PlaceOrder(context.Background(), spy, market.MarketOrder(-50, "t2"))
	require.NoError(t, err)

	// Ids continue above the handshake floor and never repeat.
	assert.Greater(t, first, int64(50))
	assert.Equal(t, first+1, second)

	sent := ft.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, events.KindPlaceOrder, sent[0].Kind)
	assert.Equal(t, events.KindPlaceOrder, sent[1].Kind)
}

func TestPlaceOrderRequiresConnection(t *testing.T) {
	c := NewClientWithTransport(testOptions(), testutil.NewFakeTransport(), parse.NewAdapter())

	_, err := c.PlaceOrder(context.Background(), market.USStock("SPY"), market.MarketOrder(1, ""))
	require.Error(t, err)
	assert.True(t, gwerrs.IsNotConnected(err))
}

func TestPlaceOrderSurfacesSendFailure(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.FailSend(errors.New("broken pipe"))

	_, err := c.PlaceOrder(context.Background(), market.USStock("SPY"), market.MarketOrder(1, ""))
	assert.Error(t, err, "a dropped order must not fail silently")
}

func TestCancelOrder(t *testing.T) {
	c, ft := newConnectedClient(t)

	require.NoError(t, c.CancelOrder(context.Background(), 57))

	sent := ft.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, events.KindCancelOrder, sent[0].Kind)
	assert.Equal(t, int64(57), sent[0].RequestID)
}

func TestFundamentalData(t *testing.T) {
	c, ft := newConnectedClient(t)

	ft.OnSend = func(req testutil.SentRequest) []map[string]any {
		return []map[string]any{
			testutil.DataEvent(req.RequestID, req.Kind, "<ReportSnapshot/>"),
		}
	}

	report, err := c.FundamentalData(context.Background(), market.USStock("SPY"), "")
	require.NoError(t, err)
	assert.Equal(t, "<ReportSnapshot/>", report)
}
