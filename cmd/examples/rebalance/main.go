// Package main demonstrates a small end-of-day rebalancing flow: pick
// the stronger of two ETFs by recent momentum, size the position from
// account liquidity, and move the account there with market-on-close
// orders.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/conneroisu/ibsync/pkg/ibsync"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
	"github.com/conneroisu/ibsync/pkg/ibsync/options"
)

const (
	riskOn  = "SPY"
	riskOff = "TLT"

	lookback = "16 D"
	orderRef = "rebalance-example"
)

func main() {
	_ = godotenv.Load()

	client := ibsync.NewClient(options.GatewayOptions{
		Host:     os.Getenv("IB_HOST"),
		Port:     envInt("IB_PORT"),
		ClientID: envInt("IB_CLIENT_ID"),
	})
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	target := pickTarget(ctx, client)
	fmt.Printf("target asset: %s\n", target)

	netLiq := netLiquidation(ctx, client)
	if netLiq <= 0 {
		log.Fatal("no account liquidity reported")
	}

	price, err := client.LastPrice(ctx, market.USStock(target))
	if err != nil || price <= 0 {
		log.Fatalf("no price for %s: %v", target, err)
	}
	targetShares := int64(netLiq * 0.95 / price)

	positions, err := client.Positions(ctx)
	if err != nil {
		log.Fatalf("positions: %v", err)
	}

	// Close everything that is not the target, then adjust the target.
	held := int64(0)
	for _, p := range positions {
		if p.Contract.Symbol == target {
			held = p.Position

			continue
		}
		if p.Position != 0 {
			place(ctx, client, p.Contract, -p.Position)
		}
	}

	if delta := targetShares - held; delta != 0 {
		place(ctx, client, market.USStock(target), delta)
	} else {
		fmt.Println("already at target, nothing to do")
	}
}

// pickTarget returns the ETF with the higher close-to-close return over
// the lookback window, defaulting to the risk-off asset when data is
// missing.
func pickTarget(ctx context.Context, client *ibsync.Client) string {
	if momentum(ctx, client, riskOn) > momentum(ctx, client, riskOff) {
		return riskOn
	}

	return riskOff
}

func momentum(ctx context.Context, client *ibsync.Client, symbol string) float64 {
	bars, err := client.HistoricalData(ctx, ibsync.HistoricalDataRequest{
		Contract: market.USStock(symbol),
		Duration: lookback,
		BarSize:  "1 day",
		UseRTH:   true,
	})
	if err != nil || len(bars) < 2 {
		return 0
	}

	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first <= 0 {
		return 0
	}

	return last/first - 1
}

func netLiquidation(ctx context.Context, client *ibsync.Client) float64 {
	summary, err := client.AccountSummary(ctx, "", "NetLiquidation")
	if err != nil {
		return 0
	}
	for _, row := range summary {
		if row.Tag == "NetLiquidation" {
			v, _ := strconv.ParseFloat(row.Value, 64)

			return v
		}
	}

	return 0
}

func place(ctx context.Context, client *ibsync.Client, contract market.Contract, quantity int64) {
	orderID, err := client.PlaceOrder(ctx, contract, market.MarketOnCloseOrder(quantity, orderRef))
	if err != nil {
		log.Fatalf("place order for %s: %v", contract.Symbol, err)
	}
	fmt.Printf("order %d: %s %+d\n", orderID, contract.Symbol, quantity)
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}

	return v
}
