// Package session provides durable storage for WhatsApp pairing credentials.
//
// The store owns one directory. The transport keeps its credential database
// inside it (opaque to this package), and the store adds a small JSON
// snapshot of the paired device identity alongside it. Only existence,
// atomic overwrite, and wipe-on-logout matter here; the internal format of
// the transport's files is dictated by the protocol library.
//
// Credentials and connection state are deliberately decoupled: credential
// files may exist on disk while the connection is down, e.g. at process
// start before the transport has resumed the session.
package session
