// Package orderbook implements the per-instrument matching engine.
//
// An OrderBook is single-writer: exactly one goroutine may touch it for its
// whole lifetime, so it carries no locks. Orders live in a dense arena and
// price levels link arena slots, which makes cancellation an O(1) unlink.
package orderbook
