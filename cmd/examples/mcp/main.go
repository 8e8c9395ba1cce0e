// Package main runs the gateway MCP tool server over stdio, exposing
// prices, positions and account state to MCP-capable hosts.
package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/conneroisu/ibsync/pkg/ibsync"
	"github.com/conneroisu/ibsync/pkg/ibsync/adapters/mcp"
	"github.com/conneroisu/ibsync/pkg/ibsync/options"
)

func main() {
	_ = godotenv.Load()

	client := ibsync.NewClient(options.GatewayOptions{
		Host:     os.Getenv("IB_HOST"),
		Port:     envInt("IB_PORT"),
		ClientID: envInt("IB_CLIENT_ID"),
	})

	if err := client.Connect(context.Background()); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	if err := mcp.NewServer(client).ServeStdio(); err != nil {
		log.Fatalf("mcp server: %v", err)
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}

	return v
}
