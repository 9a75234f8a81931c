// ABOUTME: Connection manager owning the single WhatsApp session state machine.
// ABOUTME: One run loop serializes transport events, retry timers, and restart requests.

package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/raissanails/wanotify/internal/session"
	"github.com/raissanails/wanotify/internal/transport"
)

// State is the connection state of the single logical device session.
// Transitions are driven only by transport events; the dispatch API never
// changes state.
type State int

const (
	StateDisconnected State = iota
	StatePairing
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePairing:
		return "pairing"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "invalid"
	}
}

// StatusInfo is the always-available snapshot of the session.
type StatusInfo struct {
	Connected    bool
	HasChallenge bool
	Message      string
}

// DispatchReceipt identifies one accepted outbound message.
type DispatchReceipt struct {
	ID        string
	Recipient string
}

// Options configures a Manager.
type Options struct {
	Store             *session.Store
	Transport         transport.Transport
	Policy            Policy
	Logger            *slog.Logger
	SendTimeout       time.Duration
	SendRatePerMinute int
}

// Manager owns the session. Exactly one instance exists per process; it is
// constructed once at startup and injected into the HTTP surface.
type Manager struct {
	store   *session.Store
	tr      transport.Transport
	policy  Policy
	logger  *slog.Logger
	limiter *rate.Limiter

	sendTimeout time.Duration

	// after is time.After, swappable for deterministic time in tests.
	after func(time.Duration) <-chan time.Time

	mu        sync.RWMutex
	state     State
	challenge string

	restartCh chan struct{}
}

// New creates a Manager. Call Run to start processing events.
func New(opts Options) *Manager {
	perMinute := opts.SendRatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	sendTimeout := opts.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Manager{
		store:       opts.Store,
		tr:          opts.Transport,
		policy:      opts.Policy,
		logger:      opts.Logger,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		sendTimeout: sendTimeout,
		after:       time.After,
		state:       StateDisconnected,
		restartCh:   make(chan struct{}, 1),
	}
}

// Run drives the state machine until ctx is canceled. All transitions happen
// on this goroutine; a reconnect attempt can never overlap another because
// the loop processes one event at a time.
func (m *Manager) Run(ctx context.Context) error {
	if m.store.HasCredentials() {
		m.logger.Info("credentials found, resuming session", "dir", m.store.Dir())
	} else {
		m.logger.Info("no credentials stored, fresh pairing required", "dir", m.store.Dir())
	}

	var retry <-chan time.Time
	retry = m.connect(ctx)

	for {
		select {
		case <-ctx.Done():
			m.setState(StateClosing)
			m.tr.Close()
			return nil

		case ev, ok := <-m.tr.Events():
			if !ok {
				m.setState(StateClosing)
				return fmt.Errorf("transport event stream closed")
			}
			retry = m.handleEvent(ctx, ev, retry)

		case <-retry:
			retry = nil
			// A stale timer may fire after the state already moved on;
			// ignore it.
			if m.State() != StateDisconnected {
				continue
			}
			retry = m.connect(ctx)

		case <-m.restartCh:
			if m.State() != StateDisconnected {
				continue
			}
			m.logger.Info("operator restart requested")
			retry = m.connect(ctx)
		}
	}
}

// connect enters pairing and asks the transport to open the session. A
// failed attempt is a disconnected-to-disconnected transition gated by the
// unknown-cause retry delay.
func (m *Manager) connect(ctx context.Context) <-chan time.Time {
	m.setState(StatePairing)
	if err := m.tr.Connect(ctx); err != nil {
		m.logger.Warn("connection attempt failed",
			"error", err,
			"retry_in", m.policy.RetryDelayUnknown,
		)
		m.setState(StateDisconnected)
		return m.after(m.policy.RetryDelayUnknown)
	}
	return nil
}

func (m *Manager) handleEvent(ctx context.Context, ev transport.Event, retry <-chan time.Time) <-chan time.Time {
	switch e := ev.(type) {
	case transport.QRCode:
		m.setChallenge(e.Code)
		m.logger.Info("pairing challenge received, scan it from the /qrcode page")
		return retry

	case transport.Connected:
		m.setState(StateConnected)
		m.logger.Info("connected to whatsapp, ready to send")
		// Any pending retry timer is now stale.
		return nil

	case transport.CredsUpdated:
		if err := m.store.SaveSnapshot(e.Snapshot); err != nil {
			// Non-fatal: the live session keeps working, but a future
			// restart may need to re-pair.
			m.logger.Warn("persisting credentials failed", "error", err)
		} else {
			m.logger.Info("credentials persisted", "device", e.Snapshot.DeviceJID)
		}
		return retry

	case transport.Disconnected:
		return m.handleDisconnect(ctx, e)
	}
	return retry
}

func (m *Manager) handleDisconnect(ctx context.Context, e transport.Disconnected) <-chan time.Time {
	m.setState(StateDisconnected)

	d := m.policy.Decide(e.Cause)
	m.logger.Warn("disconnected",
		"cause", e.Cause.String(),
		"detail", e.Detail,
		"action", d.Action.String(),
	)

	switch d.Action {
	case ActionHalt:
		m.logger.Error("the network is rate limiting this installation; automatic recovery halted",
			"hint", "wait at least an hour, then restart the process",
		)
		return nil

	case ActionResetAndPair:
		select {
		case <-m.after(d.Grace):
		case <-ctx.Done():
			return nil
		}
		if err := m.store.Wipe(); err != nil {
			m.logger.Warn("wiping credentials failed", "error", err)
		}
		if err := m.tr.Reset(ctx); err != nil {
			m.logger.Warn("resetting transport state failed", "error", err)
		}
		m.logger.Info("credentials discarded, fresh pairing scheduled", "in", d.Delay)
		return m.after(d.Delay)

	default:
		m.logger.Info("reconnect scheduled", "in", d.Delay)
		return m.after(d.Delay)
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status never fails and never blocks on I/O.
func (m *Manager) Status() StatusInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := StatusInfo{
		Connected:    m.state == StateConnected,
		HasChallenge: m.state == StatePairing && m.challenge != "",
	}
	switch {
	case info.Connected:
		info.Message = "whatsapp connected and ready"
	case info.HasChallenge:
		info.Message = "pairing challenge available, scan it to connect"
	default:
		info.Message = "whatsapp not connected"
	}
	return info
}

// PairingChallenge returns the live challenge, if any. Stale once the state
// leaves pairing.
func (m *Manager) PairingChallenge() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StatePairing || m.challenge == "" {
		return "", false
	}
	return m.challenge, true
}

// SendText dispatches one message. It fails with ErrUnavailable unless the
// session is connected; nothing is queued or buffered on the caller's
// behalf.
func (m *Manager) SendText(ctx context.Context, recipient, body string) (DispatchReceipt, error) {
	normalized, err := NormalizeRecipient(recipient)
	if err != nil {
		return DispatchReceipt{}, err
	}

	if m.State() != StateConnected {
		return DispatchReceipt{}, ErrUnavailable
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return DispatchReceipt{}, fmt.Errorf("waiting for send slot: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	id, err := m.tr.SendText(sendCtx, normalized, body)
	if err != nil {
		return DispatchReceipt{}, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	if id == "" {
		id = uuid.New().String()
	}

	m.logger.Info("message dispatched", "recipient", normalized, "message_id", id)
	return DispatchReceipt{ID: id, Recipient: normalized}, nil
}

// Restart asks the run loop to attempt recovery now. This is the only way
// out of a rate-limit halt. No-op while not disconnected.
func (m *Manager) Restart() {
	select {
	case m.restartCh <- struct{}{}:
	default:
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	if s != StatePairing {
		m.challenge = ""
	}
}

func (m *Manager) setChallenge(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StatePairing
	m.challenge = code
}

// NormalizeRecipient reduces a phone number to its digits. Formatting like
// "(11) 99999-9999" and "11999999999" normalize to the same recipient.
func NormalizeRecipient(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if len(n) < 8 || len(n) > 15 {
		return "", ErrInvalidRecipient
	}
	return n, nil
}
