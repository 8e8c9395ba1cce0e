// Package ibsync provides a synchronous client for an IB-style trading
// gateway. The gateway speaks an asynchronous, event-driven protocol: one
// persistent session delivers data fragments, end-of-stream sentinels and
// errors, all tagged with correlation ids. This package bridges that
// stream to a blocking call surface: every operation allocates an id,
// registers a waiter, sends the request and parks the calling goroutine
// until the dispatcher resolves it or the timeout elapses.
//
// A Client owns exactly one connection, its pending-request registry and
// its single reader goroutine; multiple independent Clients may coexist
// in one process.
//
// The operations never return an error for gateway-side failures: a
// timeout or a rejected request degrades to the operation's documented
// empty result, and only the not-connected precondition surfaces as a
// hard error. Callers that must distinguish "empty" from "failed" can
// inspect IsConnected or the configured logger.
package ibsync
