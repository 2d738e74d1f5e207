// Package exchange implements the two roles of the link exerciser.
//
// The sender periodically emits a probe, listens for replies during a
// bounded window and idles until the next cycle. The receiver polls the
// link and answers every read with an ack wrapping the bytes read.
//
// Each controller owns its state and runs in a single goroutine until its
// context is done. Every blocking call is bounded by a timeout, so
// cancellation is observed within one poll timeout.
package exchange
