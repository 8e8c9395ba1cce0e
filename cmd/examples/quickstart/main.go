// Package main demonstrates basic usage of the ibsync SDK: connect to a
// gateway, fetch a price and a few account facts, disconnect.
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

func main() {
	// Optional .env with IB_HOST / IB_PORT / IB_CLIENT_ID
	_ = godotenv.Load()

	opts := options.GatewayOptions{
		Host:     os.Getenv("IB_HOST"),
		Port:     envInt("IB_PORT"),
		ClientID: envInt("IB_CLIENT_ID"),
	}

	client := ibsync.NewClient(opts)
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	fmt.Printf("connected, session %s\n", client.SessionID())

	spy := market.USStock("SPY")

	price, err := client.LastPrice(ctx, spy)
	if err != nil {
		log.Fatalf("last price: %v", err)
	}
	fmt.Printf("SPY last price: %.2f\n", price)

	positions, err := client.Positions(ctx)
	if err != nil {
		log.Fatalf("positions: %v", err)
	}
	for _, p := range positions {
		fmt.Printf("position: %-6s %6d @ %.2f\n",
			p.Contract.Symbol, p.Position, p.AvgCost)
	}

	summary, err := client.AccountSummary(ctx, "")
	if err != nil {
		log.Fatalf("account summary: %v", err)
	}
	for _, row := range summary {
		fmt.Printf("%-16s %s %s\n", row.Tag, row.Value, row.Currency)
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}

	return v
}
