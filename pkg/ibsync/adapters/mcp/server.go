// Package mcp exposes a connected gateway client as an MCP tool server,
// so agent frameworks can query prices, positions and account state over
// the Model Context Protocol without linking the SDK directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conneroisu/ibsync/pkg/ibsync"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
)

const serverVersion = "0.1.0"

// Server wraps an ibsync client in an MCP tool server.
type Server struct {
	client *ibsync.Client
	mcp    *server.MCPServer
}

// NewServer builds the tool server around an already configured client.
// The client does not need to be connected yet; each tool checks the
// connection when invoked.
func NewServer(client *ibsync.Client) *Server {
	s := &Server{
		client: client,
		mcp: server.NewMCPServer(
			"ibsync-gateway",
			serverVersion,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()

	return s
}

// ServeStdio runs the tool server over stdin/stdout until the stream
// closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server, for embedding in hosts that
// manage their own transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("last_price",
		mcp.WithDescription("Best available price for a US stock: last trade, else bid/ask midpoint."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker symbol, e.g. SPY"),
		),
	), s.handleLastPrice)

	s.mcp.AddTool(mcp.NewTool("market_snapshot",
		mcp.WithDescription("One-shot market data snapshot (last, bid, ask) for a US stock."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker symbol, e.g. SPY"),
		),
	), s.handleMarketSnapshot)

	s.mcp.AddTool(mcp.NewTool("positions",
		mcp.WithDescription("Current positions held in the account."),
	), s.handlePositions)

	s.mcp.AddTool(mcp.NewTool("account_summary",
		mcp.WithDescription("Account liquidity summary: net liquidation, cash, available funds, buying power."),
	), s.handleAccountSummary)

	s.mcp.AddTool(mcp.NewTool("historical_bars",
		mcp.WithDescription("Daily historical bars for a US stock."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker symbol, e.g. SPY"),
		),
		mcp.WithString("duration",
			mcp.Description("Gateway duration string, default \"16 D\""),
		),
	), s.handleHistoricalBars)

	s.mcp.AddTool(mcp.NewTool("open_orders",
		mcp.WithDescription("Working orders for this client."),
	), s.handleOpenOrders)
}

func (s *Server) handleLastPrice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	price, err := s.client.LastPrice(ctx, market.USStock(symbol))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if price == 0 {
		return mcp.NewToolResultError(
			fmt.Sprintf("no price available for %s", symbol),
		), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%.2f", price)), nil
}

func (s *Server) handleMarketSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	quote, err := s.client.MarketSnapshot(ctx, market.USStock(symbol))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(quote)
}

func (s *Server) handlePositions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	positions, err := s.client.Positions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(positions)
}

func (s *Server) handleAccountSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.client.AccountSummary(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(summary)
}

func (s *Server) handleHistoricalBars(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration := req.GetString("duration", "16 D")

	bars, err := s.client.HistoricalData(ctx, ibsync.HistoricalDataRequest{
		Contract: market.USStock(symbol),
		Duration: duration,
		BarSize:  "1 day",
		UseRTH:   true,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(bars)
}

func (s *Server) handleOpenOrders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orders, err := s.client.OpenOrders(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(orders)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}
