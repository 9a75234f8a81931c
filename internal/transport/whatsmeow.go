// ABOUTME: Real WhatsApp transport built on whatsmeow and its sqlstore credential container.
// ABOUTME: Maps whatsmeow callbacks and QR channel items into the ordered Event stream.

package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	waStore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/raissanails/wanotify/internal/session"
)

func init() {
	// Shows up under "linked devices" on the owner's phone.
	waStore.SetOSInfo("Raissa Nails", [3]uint32{1, 0, 0})
}

// Meow is the whatsmeow-backed Transport. Credentials live in the session
// store's directory, in whatsmeow's own sqlite database.
type Meow struct {
	store  *session.Store
	logger *slog.Logger
	waLog  waLog.Logger

	mu     sync.RWMutex
	client *whatsmeow.Client

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewMeow opens the credential container inside the session store's
// directory and prepares a client. It does not connect.
func NewMeow(ctx context.Context, st *session.Store, logger *slog.Logger, waLevel string) (*Meow, error) {
	m := &Meow{
		store:  st,
		logger: logger,
		waLog:  waLog.Stdout("whatsmeow", strings.ToUpper(waLevel), false),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	if err := m.initClient(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// initClient (re)opens the sqlstore container and builds a fresh client
// around the first stored device, or a new device when none exists.
func (m *Meow) initClient(ctx context.Context) error {
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+m.store.DBPath()+"?_foreign_keys=on", m.waLog)
	if err != nil {
		return fmt.Errorf("opening credential container: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		device = container.NewDevice()
	} else if err != nil {
		return fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, m.waLog)
	client.AddEventHandler(m.handleEvent)

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	return nil
}

func (m *Meow) getClient() *whatsmeow.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Connect opens or resumes the session. When no device identity is stored
// yet, it subscribes to the QR channel first so pairing challenges reach the
// event stream.
func (m *Meow) Connect(ctx context.Context) error {
	client := m.getClient()

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil && !errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
			return fmt.Errorf("opening QR channel: %w", err)
		}
		if err == nil {
			go m.pumpQR(qrChan)
		}
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

// pumpQR forwards pairing challenges from whatsmeow's QR channel. A timeout
// surfaces as an ordinary transient disconnect so the retry policy applies.
func (m *Meow) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			m.emit(QRCode{Code: item.Code})
		case "success":
			return
		case "timeout":
			m.emit(Disconnected{Cause: CauseTransientNetwork, Detail: "pairing challenge expired"})
			return
		}
	}
}

// Disconnect tears down the socket without touching credentials.
func (m *Meow) Disconnect() {
	m.getClient().Disconnect()
}

// Reset drops the stored device identity and rebuilds the client so the next
// Connect pairs from scratch. The caller is expected to have wiped the
// session directory already; deleting the device here covers the handle the
// old client still holds.
func (m *Meow) Reset(ctx context.Context) error {
	client := m.getClient()
	client.Disconnect()
	if client.Store.ID != nil {
		if err := client.Store.Delete(ctx); err != nil {
			m.logger.Warn("deleting device state failed, continuing with fresh container", "error", err)
		}
	}
	return m.initClient(ctx)
}

// SendText dispatches one plain text message. The recipient must already be
// normalized to digits.
func (m *Meow) SendText(ctx context.Context, recipient, body string) (string, error) {
	to := types.JID{User: recipient, Server: types.DefaultUserServer}
	msg := &waProto.Message{Conversation: proto.String(body)}

	resp, err := m.getClient().SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("sending to %s: %w", recipient, err)
	}
	return resp.ID, nil
}

// Events returns the ordered event stream.
func (m *Meow) Events() <-chan Event {
	return m.events
}

// Close disconnects and stops event delivery.
func (m *Meow) Close() {
	m.once.Do(func() {
		close(m.done)
		m.getClient().Disconnect()
	})
}

func (m *Meow) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// handleEvent classifies whatsmeow callbacks into the Event union. This is
// the single place raw network signals turn into DisconnectCauses.
func (m *Meow) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		m.emit(Connected{})

	case *events.PairSuccess:
		m.emit(CredsUpdated{Snapshot: session.Snapshot{
			DeviceJID: v.ID.String(),
			Platform:  v.Platform,
			PairedAt:  time.Now().UTC(),
		}})

	case *events.Disconnected:
		m.emit(Disconnected{Cause: CauseTransientNetwork, Detail: "connection lost"})

	case *events.LoggedOut:
		m.emit(Disconnected{Cause: CauseLoggedOut, Detail: "device unlinked from phone"})

	case *events.StreamReplaced:
		// Another client took over this session; our credentials are dead.
		m.emit(Disconnected{Cause: CauseLoggedOut, Detail: "stream replaced by another device"})

	case *events.TemporaryBan:
		m.emit(Disconnected{
			Cause:  CauseRateLimited,
			Detail: fmt.Sprintf("temporary ban (code %v, expires in %v)", v.Code, v.Expire),
		})

	case *events.StreamError:
		m.emit(Disconnected{
			Cause:  streamErrorCause(v.Code),
			Detail: "stream error " + v.Code,
		})
	}
}
