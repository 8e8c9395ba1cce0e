// Package market provides the domain records exchanged with the trading
// gateway: contracts, orders, and the typed results of the synchronous
// operations.
package market

import "time"

// Contract identifies a tradeable instrument.
type Contract struct {
	Symbol   string `json:"symbol"`
	SecType  string `json:"sec_type"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	// LocalSymbol is the exchange-local symbol, when it differs
	LocalSymbol string `json:"local_symbol,omitempty"`
}

// USStock creates a contract for a US equity or ETF routed through the
// gateway's smart router.
func USStock(symbol string) Contract {
	return Contract{
		Symbol:   symbol,
		SecType:  "STK",
		Exchange: "SMART",
		Currency: "USD",
	}
}

// Order describes an order to be placed with the gateway.
type Order struct {
	Action        string  `json:"action"`
	OrderType     string  `json:"order_type"`
	TotalQuantity int64   `json:"total_quantity"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	OrderRef      string  `json:"order_ref,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
}

// NewOrder creates an order from a signed quantity: positive buys,
// negative sells.
func NewOrder(quantity int64, orderType, orderRef string) Order {
	action := "BUY"
	if quantity < 0 {
		action = "SELL"
		quantity = -quantity
	}

	return Order{
		Action:        action,
		OrderType:     orderType,
		TotalQuantity: quantity,
		OrderRef:      orderRef,
		Exchange:      "SMART",
	}
}

// MarketOrder creates a market order from a signed quantity.
func MarketOrder(quantity int64, orderRef string) Order {
	return NewOrder(quantity, "MKT", orderRef)
}

// MarketOnCloseOrder creates a market-on-close order from a signed
// quantity.
func MarketOnCloseOrder(quantity int64, orderRef string) Order {
	return NewOrder(quantity, "MOC", orderRef)
}

// Bar is one aggregated price bar, historical or real-time.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	WAP    float64   `json:"wap,omitempty"`
	Count  int64     `json:"count,omitempty"`
}

// Tick field identifiers used in market snapshot fragments.
const (
	TickBid      = 1
	TickAsk      = 2
	TickLast     = 4
	TickLastSize = 5
)

// Tick is one field of a market data snapshot.
type Tick struct {
	Type  int     `json:"tick_type"`
	Price float64 `json:"price,omitempty"`
	Size  int64   `json:"size,omitempty"`
}

// Quote is the reduced form of a snapshot request: the last trade and the
// top of book, any of which may be absent (zero).
type Quote struct {
	Last     float64 `json:"last,omitempty"`
	Bid      float64 `json:"bid,omitempty"`
	Ask      float64 `json:"ask,omitempty"`
	LastSize int64   `json:"last_size,omitempty"`
}

// Price returns the best available price from the quote: the last trade,
// else the bid/ask midpoint, else whichever side is present, else 0.
func (q Quote) Price() float64 {
	switch {
	case q.Last > 0:
		return q.Last
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Bid > 0:
		return q.Bid
	case q.Ask > 0:
		return q.Ask
	default:
		return 0
	}
}

// Apply folds one tick into the quote. Later ticks of the same type
// overwrite earlier ones.
func (q *Quote) Apply(t Tick) {
	switch t.Type {
	case TickBid:
		q.Bid = t.Price
	case TickAsk:
		q.Ask = t.Price
	case TickLast:
		q.Last = t.Price
	case TickLastSize:
		q.LastSize = t.Size
	}
}

// Execution is one fill reported by the gateway.
type Execution struct {
	ExecID   string    `json:"exec_id"`
	OrderID  int64     `json:"order_id"`
	Time     time.Time `json:"time"`
	Account  string    `json:"account"`
	Exchange string    `json:"exchange"`
	Side     string    `json:"side"`
	Shares   int64     `json:"shares"`
	Price    float64   `json:"price"`
	CumQty   int64     `json:"cum_qty"`
	AvgPrice float64   `json:"avg_price"`
	OrderRef string    `json:"order_ref,omitempty"`
}

// Position is one row of the account's position report.
type Position struct {
	Account  string   `json:"account"`
	Contract Contract `json:"contract"`
	Position int64    `json:"position"`
	AvgCost  float64  `json:"avg_cost"`
}

// OpenOrder is one working order reported by the gateway.
type OpenOrder struct {
	OrderID  int64    `json:"order_id"`
	Contract Contract `json:"contract"`
	Order    Order    `json:"order"`
	Status   string   `json:"status"`
}

// OrderStatus is the latest known state of one order.
type OrderStatus struct {
	OrderID       int64   `json:"order_id"`
	Status        string  `json:"status"`
	Filled        int64   `json:"filled"`
	Remaining     int64   `json:"remaining"`
	AvgFillPrice  float64 `json:"avg_fill_price"`
	LastFillPrice float64 `json:"last_fill_price"`
	WhyHeld       string  `json:"why_held,omitempty"`
}

// AccountValue is one tag/value row of the account summary.
type AccountValue struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// PortfolioEntry is one instrument row of the account-update snapshot.
type PortfolioEntry struct {
	Contract      Contract `json:"contract"`
	Position      int64    `json:"position"`
	MarketPrice   float64  `json:"market_price"`
	MarketValue   float64  `json:"market_value"`
	AverageCost   float64  `json:"average_cost"`
	UnrealizedPNL float64  `json:"unrealized_pnl"`
	RealizedPNL   float64  `json:"realized_pnl"`
	Account       string   `json:"account"`
}

// ContractDetails is the gateway's extended description of a contract.
type ContractDetails struct {
	Contract       Contract `json:"contract"`
	LongName       string   `json:"long_name"`
	MinTick        float64  `json:"min_tick"`
	ValidExchanges string   `json:"valid_exchanges,omitempty"`
	TimeZone       string   `json:"time_zone,omitempty"`
}

// HistoricalTick is one tick of historical tick data.
type HistoricalTick struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	Size  int64     `json:"size"`
}

// NewsBulletin is one broadcast news bulletin.
type NewsBulletin struct {
	ID       int64  `json:"id"`
	Type     int    `json:"type"`
	Message  string `json:"message"`
	Exchange string `json:"exchange,omitempty"`
}
