package ibsync

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
	"github.com/conneroisu/ibsync/pkg/ibsync/registry"
)

// HistoricalDataRequest parameterizes a historical bar request.
type HistoricalDataRequest struct {
	Contract market.Contract `json:"contract"`
	// EndTime is the end of the window, empty for "now"
	EndTime string `json:"end_time,omitempty"`
	// Duration is the gateway duration string, e.g. "1 D", "16 D"
	Duration string `json:"duration"`
	// BarSize is the gateway bar size string, e.g. "1 min", "1 day"
	BarSize string `json:"bar_size"`
	// WhatToShow selects the data series, defaulting to trades
	WhatToShow string `json:"what_to_show,omitempty"`
	// UseRTH restricts bars to regular trading hours
	UseRTH bool `json:"use_rth"`

	// Timeout overrides the client's default request timeout
	Timeout time.Duration `json:"-"`
}

// HistoricalTicksRequest parameterizes a historical tick request.
type HistoricalTicksRequest struct {
	Contract      market.Contract `json:"contract"`
	StartTime     string          `json:"start_time,omitempty"`
	EndTime       string          `json:"end_time,omitempty"`
	NumberOfTicks int             `json:"number_of_ticks"`
	WhatToShow    string          `json:"what_to_show,omitempty"`
	UseRTH        bool            `json:"use_rth"`

	// Timeout overrides the client's default request timeout
	Timeout time.Duration `json:"-"`
}

// ExecutionFilter narrows an execution report request. The zero value
// requests all executions visible to this client.
type ExecutionFilter struct {
	Account  string `json:"account,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	SecType  string `json:"sec_type,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Side     string `json:"side,omitempty"`
}

// Tags requested by AccountSummary when the caller passes none.
var defaultSummaryTags = []string{
	"NetLiquidation",
	"TotalCashValue",
	"AvailableFunds",
	"BuyingPower",
}

// request describes one synchronous operation for the shared template.
type request struct {
	kind    events.RequestKind
	shape   registry.Shape
	timeout time.Duration
	params  any
	// unsubscribe sends a best-effort cancel after a successful
	// completion, for subscription-backed snapshot requests
	unsubscribe bool
}

// do runs the shared operation template: check the connected
// precondition, allocate an id, register a waiter, send, block until the
// waiter resolves or the timeout elapses. Gateway-side failures and
// timeouts degrade to a nil fragment list with a nil error; only the
// precondition violation and caller cancellation surface as errors.
func (c *Client) do(ctx context.Context, req request) ([]json.RawMessage, error) {
	if !c.IsConnected() {
		return nil, gwerrs.NewClientError(
			gwerrs.ErrCodeNotConnected,
			"not connected to gateway",
			nil,
		)
	}

	id := c.reqIDs.Next()
	p, fresh := c.pending.Register(id, req.shape, req.timeout)
	if !fresh {
		// Allocator ids are never reused while active; reaching this
		// means the invariant broke upstream.
		return nil, gwerrs.NewProtocolError(
			gwerrs.ErrCodeDuplicateRequest,
			"correlation id already in flight",
			nil,
		).WithRequestID(id)
	}

	opLog := c.log.WithFields(logrus.Fields{
		"kind":   req.kind,
		"req_id": id,
		"shape":  req.shape.String(),
	})

	if err := c.transport.Send(ctx, req.kind, id, req.params); err != nil {
		c.pending.Remove(id)
		opLog.WithError(err).Info("request send failed")

		return nil, nil
	}

	t := time.NewTimer(p.Timeout())
	defer t.Stop()

	select {
	case <-p.Done():

	case <-t.C:
		// Advisory to the remote side, authoritative locally.
		if err := c.transport.Cancel(ctx, id); err != nil {
			opLog.WithError(err).Debug("best-effort cancel failed")
		}
		c.pending.Remove(id)
		opLog.Info("request timed out")

		return nil, nil

	case <-ctx.Done():
		if err := c.transport.Cancel(ctx, id); err == nil {
			opLog.Debug("cancelled in-flight request")
		}
		c.pending.Remove(id)

		return nil, ctx.Err()
	}

	if req.unsubscribe {
		if err := c.transport.Cancel(ctx, id); err != nil {
			opLog.WithError(err).Debug("best-effort unsubscribe failed")
		}
	}

	if err := p.Err(); err != nil {
		opLog.WithError(err).Info("request failed")

		return nil, nil
	}

	return p.Fragments(), nil
}

// HistoricalData requests historical bars and blocks until the end
// sentinel arrives. On timeout or gateway error it returns an empty
// slice.
func (c *Client) HistoricalData(ctx context.Context, req HistoricalDataRequest) ([]market.Bar, error) {
	if req.WhatToShow == "" {
		req.WhatToShow = "TRADES"
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.opts.RequestTimeout
	}

	frags, err := c.do(ctx, request{
		kind:    events.KindHistoricalData,
		shape:   registry.ListUntilEnd,
		timeout: timeout,
		params:  req,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.Bar](c.log, events.KindHistoricalData, frags), nil
}

// Executions requests the execution report for this session.
func (c *Client) Executions(ctx context.Context, filter ExecutionFilter) ([]market.Execution, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindExecutions,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
		params:  filter,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.Execution](c.log, events.KindExecutions, frags), nil
}

// MarketSnapshot requests a one-shot market data snapshot and reduces
// the tick fragments into a quote. On timeout it returns the zero quote.
func (c *Client) MarketSnapshot(ctx context.Context, contract market.Contract) (market.Quote, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindMarketSnapshot,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.SnapshotTimeout,
		params:  map[string]any{"contract": contract},
	})
	if err != nil {
		return market.Quote{}, err
	}

	var q market.Quote
	for _, t := range decodeList[market.Tick](c.log, events.KindMarketSnapshot, frags) {
		q.Apply(t)
	}

	return q, nil
}

// LastPrice returns the best available price for the contract: the last
// trade, else the bid/ask midpoint, else one side of the book. It
// returns 0 when no price is available before the snapshot timeout.
func (c *Client) LastPrice(ctx context.Context, contract market.Contract) (float64, error) {
	q, err := c.MarketSnapshot(ctx, contract)
	if err != nil {
		return 0, err
	}

	return q.Price(), nil
}

// RealTimeBar subscribes to real-time bars and returns the first bar
// received, cancelling the subscription immediately. Returns nil on
// timeout.
func (c *Client) RealTimeBar(ctx context.Context, contract market.Contract, whatToShow string) (*market.Bar, error) {
	if whatToShow == "" {
		whatToShow = "TRADES"
	}

	frags, err := c.do(ctx, request{
		kind:    events.KindRealTimeBars,
		shape:   registry.FirstOfMany,
		timeout: c.opts.SnapshotTimeout,
		params: map[string]any{
			"contract":     contract,
			"what_to_show": whatToShow,
		},
	})
	if err != nil {
		return nil, err
	}

	return decodeFirst[market.Bar](c.log, events.KindRealTimeBars, frags), nil
}

// Positions requests the account's position report.
func (c *Client) Positions(ctx context.Context) ([]market.Position, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindPositions,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.Position](c.log, events.KindPositions, frags), nil
}

// OpenOrders requests the working orders for this client.
func (c *Client) OpenOrders(ctx context.Context) ([]market.OpenOrder, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindOpenOrders,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.OpenOrder](c.log, events.KindOpenOrders, frags), nil
}

// AccountSummary requests account summary rows for the given group and
// tags. Passing no tags requests the liquidity tags the original
// interactive tooling shows by default.
func (c *Client) AccountSummary(ctx context.Context, group string, tags ...string) ([]market.AccountValue, error) {
	if group == "" {
		group = "All"
	}
	if len(tags) == 0 {
		tags = defaultSummaryTags
	}

	frags, err := c.do(ctx, request{
		kind:    events.KindAccountSummary,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
		params: map[string]any{
			"group": group,
			"tags":  strings.Join(tags, ","),
		},
		unsubscribe: true,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.AccountValue](c.log, events.KindAccountSummary, frags), nil
}

// Portfolio subscribes briefly to account updates, returns the portfolio
// snapshot delivered before the download-end sentinel, and unsubscribes.
func (c *Client) Portfolio(ctx context.Context, account string) ([]market.PortfolioEntry, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindAccountUpdates,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
		params:  map[string]any{"account": account},
		// Account updates are a subscription; stop it once the
		// snapshot is complete.
		unsubscribe: true,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.PortfolioEntry](c.log, events.KindAccountUpdates, frags), nil
}

// OrderStatus requests the latest known status of one order. Returns nil
// if the gateway does not report the order before the timeout.
func (c *Client) OrderStatus(ctx context.Context, orderID int64) (*market.OrderStatus, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindOrderStatus,
		shape:   registry.Scalar,
		timeout: c.opts.SnapshotTimeout,
		params:  map[string]any{"order_id": orderID},
	})
	if err != nil {
		return nil, err
	}

	return decodeFirst[market.OrderStatus](c.log, events.KindOrderStatus, frags), nil
}

// ContractDetails requests the gateway's extended description of the
// instruments matching the contract.
func (c *Client) ContractDetails(ctx context.Context, contract market.Contract) ([]market.ContractDetails, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindContractDetails,
		shape:   registry.ListUntilEnd,
		timeout: c.opts.RequestTimeout,
		params:  map[string]any{"contract": contract},
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.ContractDetails](c.log, events.KindContractDetails, frags), nil
}

// HistoricalTicks requests historical tick data.
func (c *Client) HistoricalTicks(ctx context.Context, req HistoricalTicksRequest) ([]market.HistoricalTick, error) {
	if req.NumberOfTicks == 0 {
		req.NumberOfTicks = 1000
	}
	if req.WhatToShow == "" {
		req.WhatToShow = "TRADES"
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.opts.RequestTimeout
	}

	frags, err := c.do(ctx, request{
		kind:    events.KindHistoricalTicks,
		shape:   registry.ListUntilEnd,
		timeout: timeout,
		params:  req,
	})
	if err != nil {
		return nil, err
	}

	return decodeList[market.HistoricalTick](c.log, events.KindHistoricalTicks, frags), nil
}

// NewsBulletin subscribes to news bulletins and returns the first one
// received, then unsubscribes. Best-effort: returns nil when nothing
// arrives before the snapshot timeout.
func (c *Client) NewsBulletin(ctx context.Context) (*market.NewsBulletin, error) {
	frags, err := c.do(ctx, request{
		kind:    events.KindNewsBulletins,
		shape:   registry.FirstOfMany,
		timeout: c.opts.SnapshotTimeout,
	})
	if err != nil {
		return nil, err
	}

	return decodeFirst[market.NewsBulletin](c.log, events.KindNewsBulletins, frags), nil
}

// FundamentalData requests the fundamental data report for a contract.
// Returns the raw report text, empty on timeout or error.
func (c *Client) FundamentalData(ctx context.Context, contract market.Contract, reportType string) (string, error) {
	if reportType == "" {
		reportType = "ReportSnapshot"
	}

	frags, err := c.do(ctx, request{
		kind:    events.KindFundamentalData,
		shape:   registry.Scalar,
		timeout: c.opts.RequestTimeout,
		params: map[string]any{
			"contract":    contract,
			"report_type": reportType,
		},
	})
	if err != nil || len(frags) == 0 {
		return "", err
	}

	var report string
	if err := json.Unmarshal(frags[0], &report); err != nil {
		c.log.WithError(err).Info("undecodable fundamental data payload")

		return "", nil
	}

	return report, nil
}

// decodeList unmarshals each fragment into T, dropping fragments that do
// not decode. The gateway occasionally interleaves informational rows a
// given client version does not model; those are logged and skipped
// rather than failing the whole result.
func decodeList[T any](log *logrus.Logger, kind events.RequestKind, frags []json.RawMessage) []T {
	out := make([]T, 0, len(frags))
	for _, f := range frags {
		var v T
		if err := json.Unmarshal(f, &v); err != nil {
			log.WithError(err).
				WithField("kind", kind).
				Debug("dropping undecodable fragment")

			continue
		}
		out = append(out, v)
	}

	return out
}

// decodeFirst unmarshals the first fragment into T, nil when there is
// none.
func decodeFirst[T any](log *logrus.Logger, kind events.RequestKind, frags []json.RawMessage) *T {
	if len(frags) == 0 {
		return nil
	}

	var v T
	if err := json.Unmarshal(frags[0], &v); err != nil {
		log.WithError(err).
			WithField("kind", kind).
			Debug("dropping undecodable fragment")

		return nil
	}

	return &v
}
