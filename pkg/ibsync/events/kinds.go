package events

// RequestKind identifies a request family on the wire. Every outbound
// request and every data fragment carries one, so both sides can route
// without inspecting payloads.
type RequestKind string

// Request kinds understood by the gateway.
const (
	KindHistoricalData  RequestKind = "historical_data"
	KindExecutions      RequestKind = "executions"
	KindMarketSnapshot  RequestKind = "market_snapshot"
	KindRealTimeBars    RequestKind = "realtime_bars"
	KindPositions       RequestKind = "positions"
	KindOpenOrders      RequestKind = "open_orders"
	KindAccountSummary  RequestKind = "account_summary"
	KindAccountUpdates  RequestKind = "account_updates"
	KindOrderStatus     RequestKind = "order_status"
	KindContractDetails RequestKind = "contract_details"
	KindHistoricalTicks RequestKind = "historical_ticks"
	KindNewsBulletins   RequestKind = "news_bulletins"
	KindFundamentalData RequestKind = "fundamental_data"
	KindPlaceOrder      RequestKind = "place_order"
	KindCancelOrder     RequestKind = "cancel_order"
)
