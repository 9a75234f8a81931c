// Package gateway exposes the notifier over HTTP for the booking backend.
//
// Three routes carry the whole contract: GET /status reports whether
// notifications will be delivered, GET /qrcode renders the pairing page for
// a human operator, and POST /send-message dispatches one text. A /health
// liveness route exists for process supervisors.
//
// The gateway holds no session state of its own. Every handler reads from or
// delegates to the notifier.Manager, so restarting the HTTP layer never
// disturbs the WhatsApp session.
package gateway
