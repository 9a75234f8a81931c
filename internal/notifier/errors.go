// ABOUTME: Error taxonomy for the dispatch API.
// ABOUTME: Callers match with errors.Is; raw transport errors never escape unclassified.

package notifier

import "errors"

// ErrUnavailable is returned when a send is attempted while the session is
// not connected. The message is not queued; the caller decides whether to
// retry once the status shows connected.
var ErrUnavailable = errors.New("whatsapp is not connected")

// ErrInvalidRecipient is returned for a recipient that does not normalize to
// a plausible phone number. Not retryable; the caller must fix the input.
var ErrInvalidRecipient = errors.New("invalid recipient number")

// ErrTransportFailure wraps a send the network accepted for dispatch and
// then rejected. Surfaced with details; never retried by this layer.
var ErrTransportFailure = errors.New("transport rejected the message")
