// Package service runs the sharded write path: the Router hands each
// message to its symbol's queue and a SymbolWorker per symbol applies it to
// the book it owns. Trades leave through a TradeSink and a shared log queue.
package service
