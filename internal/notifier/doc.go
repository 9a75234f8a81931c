// Package notifier owns the WhatsApp session lifecycle and the dispatch API.
//
// A single Manager per process runs the state machine
// (disconnected, pairing, connected, closing), consuming the transport's
// ordered event stream on one goroutine. Reconnection is decided by a pure
// Policy table keyed on the classified disconnect cause; the run loop does
// the scheduling, so there are no recursive reconnects and no real timers in
// tests.
//
// The dispatch API is deliberately small: Status and PairingChallenge are
// pure in-memory reads, SendText either hands exactly one message to the
// transport or fails fast. Nothing is queued; a send while not connected
// returns ErrUnavailable and the caller decides whether to retry.
package notifier
