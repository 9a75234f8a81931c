// ABOUTME: File-backed storage of WhatsApp pairing credentials.
// ABOUTME: Owns the credential directory; supports atomic snapshot writes and wipe-on-logout.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Snapshot records the pairing identity of this installation. The heavy
// cryptographic material (identity keys, pre-keys, signal sessions) lives in
// the transport's own database file inside the same directory and is treated
// as an opaque blob; this snapshot is what the rest of the system needs to
// know about the paired device.
type Snapshot struct {
	DeviceJID string    `json:"device_jid"`
	Platform  string    `json:"platform,omitempty"`
	PairedAt  time.Time `json:"paired_at"`
}

// IsZero reports whether no device has been paired.
func (s Snapshot) IsZero() bool {
	return s.DeviceJID == ""
}

const (
	snapshotFile = "device.json"
	dbFile       = "session.db"
)

// Store owns a single credential directory. Exactly one Store exists per
// process; all reads and writes of the directory go through it.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the credential directory if needed and returns a Store
// rooted at it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the credential directory path.
func (s *Store) Dir() string { return s.dir }

// DBPath returns the path of the transport's credential database inside the
// directory. The store never opens this file itself.
func (s *Store) DBPath() string { return filepath.Join(s.dir, dbFile) }

// HasCredentials reports whether any credential files exist. Absence is a
// valid state; it means a fresh pairing is needed.
func (s *Store) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// LoadSnapshot returns the persisted pairing snapshot, or a zero Snapshot if
// none exists. It never fails the caller; a corrupt or missing snapshot just
// means re-pairing.
func (s *Store) LoadSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		return Snapshot{}
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}
	}
	return snap
}

// SaveSnapshot writes the full snapshot through to disk. The write is atomic
// (temp file + rename) so a crash never leaves a partial file behind. Safe to
// call repeatedly with the same payload.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, snapshotFile)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Wipe removes every credential file and recreates the directory empty.
// Called when the network reports the session as logged out; the old
// credentials are irrecoverable at that point.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing session dir: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("recreating session dir: %w", err)
	}
	return nil
}
