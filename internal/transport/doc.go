// Package transport wraps the WhatsApp wire protocol client.
//
// The rest of the system never touches whatsmeow directly. The transport
// emits a tagged Event union (pairing challenges, connection changes,
// credential rotations) through one ordered channel, and accepts sends for
// already-normalized recipients. Disconnect signals are classified into a
// DisconnectCause exactly once, here, at the point of occurrence.
package transport
