// ABOUTME: Transport boundary for the WhatsApp connection: event union and interface.
// ABOUTME: Classifies raw network disconnect signals into the causes the policy understands.

package transport

import (
	"context"

	"github.com/raissanails/wanotify/internal/session"
)

// DisconnectCause classifies why the transport dropped. Classification
// happens once, at the point of occurrence, and is never revisited
// downstream.
type DisconnectCause int

const (
	// CauseUnknown covers everything the transport cannot identify.
	CauseUnknown DisconnectCause = iota
	// CauseTransientNetwork is an ordinary connection loss; credentials
	// remain valid and a retry is safe.
	CauseTransientNetwork
	// CauseLoggedOut means the phone unlinked this device. The persisted
	// credentials are irrecoverable; only a fresh pairing helps.
	CauseLoggedOut
	// CauseRateLimited means the network is actively penalizing this
	// installation. Automatic retries risk a permanent block.
	CauseRateLimited
)

func (c DisconnectCause) String() string {
	switch c {
	case CauseTransientNetwork:
		return "transient-network"
	case CauseLoggedOut:
		return "logged-out"
	case CauseRateLimited:
		return "rate-limited"
	default:
		return "unknown"
	}
}

// Event is the tagged union of everything the transport reports. Events are
// delivered through a single ordered channel and consumed by one loop; there
// are no per-event callbacks.
type Event interface {
	isEvent()
}

// QRCode carries a fresh pairing challenge. A new code supersedes any
// previous one.
type QRCode struct {
	Code string
}

// Connected reports that the session is authenticated and open.
type Connected struct{}

// Disconnected reports connection loss with a classified cause.
type Disconnected struct {
	Cause  DisconnectCause
	Detail string
}

// CredsUpdated reports rotated pairing credentials that must be persisted
// immediately.
type CredsUpdated struct {
	Snapshot session.Snapshot
}

func (QRCode) isEvent()       {}
func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (CredsUpdated) isEvent() {}

// Transport is the wire-protocol client as seen by the connection manager.
// Implementations emit Events in the order the network produced them.
type Transport interface {
	// Connect opens or resumes the session. With no stored credentials it
	// starts a pairing flow and emits QRCode events until the challenge is
	// scanned or times out.
	Connect(ctx context.Context) error

	// Disconnect tears down the current connection without touching
	// credentials.
	Disconnect()

	// Reset discards the transport's device state so the next Connect
	// pairs from scratch. Used after a logged-out disconnect.
	Reset(ctx context.Context) error

	// SendText dispatches one text message to a digits-only recipient and
	// returns the network's message ID.
	SendText(ctx context.Context, recipient, body string) (string, error)

	// Events returns the ordered event stream.
	Events() <-chan Event

	// Close releases all transport resources. No events are emitted after
	// Close returns.
	Close()
}

// streamErrorCause maps a raw stream-error code to a cause. Code 405 is the
// network refusing the handshake outright, observed when too many pairing
// attempts come from one address; anything else unrecognized stays unknown.
func streamErrorCause(code string) DisconnectCause {
	if code == "405" {
		return CauseRateLimited
	}
	return CauseUnknown
}
