// Package ring provides bounded lock-free queues for moving messages
// between goroutines: a wait-free single-producer/single-consumer ring and
// a ticket-sequenced multi-producer/single-consumer ring.
//
// Neither queue waits on a full or empty ring. A full queue rejects the
// push and the caller owns the retry-or-drop decision.
package ring
