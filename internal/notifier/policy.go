// ABOUTME: Reconnection policy: pure decision table keyed on disconnect cause.
// ABOUTME: Decides retry/reset/halt; the manager's run loop does the scheduling.

package notifier

import (
	"time"

	"github.com/raissanails/wanotify/internal/transport"
)

// Action is what the policy wants done after a disconnect.
type Action int

const (
	// ActionRetry reconnects after Delay, keeping credentials.
	ActionRetry Action = iota
	// ActionResetAndPair wipes credentials after Grace, then starts a
	// fresh pairing after a further Delay.
	ActionResetAndPair
	// ActionHalt stops automatic recovery entirely. Only an explicit
	// operator restart re-enters pairing.
	ActionHalt
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionResetAndPair:
		return "reset-and-pair"
	case ActionHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Decision is the policy's verdict for one disconnect.
type Decision struct {
	Action Action
	Grace  time.Duration
	Delay  time.Duration
}

// Policy holds the configured delays. Decide is pure; nothing here touches
// the transport, the store, or a clock.
type Policy struct {
	ReconnectDelay     time.Duration
	RetryDelayUnknown  time.Duration
	LogoutGrace        time.Duration
	LogoutRestartDelay time.Duration
}

// Decide maps a disconnect cause to the next action.
//
// Rate limiting halts recovery outright: the network is penalizing this
// installation, and retrying risks losing the ability to pair at all. Every
// other cause either retries with credentials intact or, for a logout,
// discards them and pairs fresh.
func (p Policy) Decide(cause transport.DisconnectCause) Decision {
	switch cause {
	case transport.CauseLoggedOut:
		return Decision{Action: ActionResetAndPair, Grace: p.LogoutGrace, Delay: p.LogoutRestartDelay}
	case transport.CauseTransientNetwork:
		return Decision{Action: ActionRetry, Delay: p.ReconnectDelay}
	case transport.CauseRateLimited:
		return Decision{Action: ActionHalt}
	default:
		return Decision{Action: ActionRetry, Delay: p.RetryDelayUnknown}
	}
}
