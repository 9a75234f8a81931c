// ABOUTME: Tests for the file-backed session credential store.
// ABOUTME: Covers snapshot persistence, idempotency, wipe, and absence handling.

package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "auth"))
	require.NoError(t, err)
	return s
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth")
	s, err := NewStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_EmptyDirRejected(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}

func TestHasCredentials(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.HasCredentials(), "fresh store should have no credentials")

	require.NoError(t, s.SaveSnapshot(Snapshot{DeviceJID: "5511993940514:12@s.whatsapp.net", PairedAt: time.Now()}))
	assert.True(t, s.HasCredentials())
}

func TestLoadSnapshot_MissingIsZero(t *testing.T) {
	s := newTestStore(t)

	snap := s.LoadSnapshot()
	assert.True(t, snap.IsZero())
}

func TestLoadSnapshot_CorruptIsZero(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "device.json"), []byte("{not json"), 0o600))

	snap := s.LoadSnapshot()
	assert.True(t, snap.IsZero())
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	paired := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	in := Snapshot{DeviceJID: "5511993940514:12@s.whatsapp.net", Platform: "android", PairedAt: paired}
	require.NoError(t, s.SaveSnapshot(in))

	out := s.LoadSnapshot()
	assert.Equal(t, in.DeviceJID, out.DeviceJID)
	assert.Equal(t, in.Platform, out.Platform)
	assert.True(t, in.PairedAt.Equal(out.PairedAt))
}

func TestSaveSnapshot_Idempotent(t *testing.T) {
	s := newTestStore(t)

	snap := Snapshot{DeviceJID: "5511993940514:12@s.whatsapp.net", PairedAt: time.Now().UTC()}
	require.NoError(t, s.SaveSnapshot(snap))
	first := s.LoadSnapshot()

	require.NoError(t, s.SaveSnapshot(snap))
	second := s.LoadSnapshot()

	assert.Equal(t, first, second)
}

func TestSaveSnapshot_NoTempFilesLeftBehind(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSnapshot(Snapshot{DeviceJID: "a@s.whatsapp.net", PairedAt: time.Now()}))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "device.json", entries[0].Name())
}

func TestWipe(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSnapshot(Snapshot{DeviceJID: "a@s.whatsapp.net", PairedAt: time.Now()}))
	require.NoError(t, os.WriteFile(s.DBPath(), []byte("opaque"), 0o600))
	require.True(t, s.HasCredentials())

	require.NoError(t, s.Wipe())

	assert.False(t, s.HasCredentials(), "wipe should leave an empty directory")
	assert.True(t, s.LoadSnapshot().IsZero())

	info, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "directory should be recreated empty")
}
