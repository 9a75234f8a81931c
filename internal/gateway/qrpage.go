// ABOUTME: Browser page for scanning the WhatsApp pairing QR code.
// ABOUTME: Renders the live challenge as a PNG and auto-refreshes until paired.

package gateway

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

var pageTmpl = template.Must(template.New("qrpage").Parse(`<!DOCTYPE html>
<html>
<head>
<title>WhatsApp - Raissa Nails</title>
{{if .RefreshSeconds}}<meta http-equiv="refresh" content="{{.RefreshSeconds}}">{{end}}
<style>
body { font-family: sans-serif; text-align: center; padding: 40px; background: #f5f5f5; }
.card { background: white; display: inline-block; padding: 30px 50px; border-radius: 12px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
h1 { color: #333; font-size: 22px; }
p { color: #666; }
img { margin: 20px 0; }
.ok { color: #25d366; font-size: 48px; }
</style>
</head>
<body>
<div class="card">
{{if .Connected}}
<div class="ok">&#10004;</div>
<h1>WhatsApp connected</h1>
<p>Notifications are being delivered. You can close this page.</p>
{{else if .QRDataURI}}
<h1>Scan to connect WhatsApp</h1>
<p>Open WhatsApp on your phone, go to Linked Devices and scan the code below.</p>
<img src="{{.QRDataURI}}" width="264" height="264" alt="QR code">
<p>This page refreshes every {{.RefreshSeconds}} seconds; the code rotates periodically.</p>
{{else}}
<h1>Starting WhatsApp session&hellip;</h1>
<p>Waiting for a pairing code. This page refreshes automatically.</p>
{{end}}
</div>
</body>
</html>
`))

type pageData struct {
	Connected      bool
	QRDataURI      template.URL
	RefreshSeconds int
}

// handleQRPage handles GET /qrcode requests. Three states: connected,
// waiting for a challenge, and challenge ready. The waiting page refreshes
// fast so the operator does not stare at a stale screen.
func (g *Gateway) handleQRPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	data := pageData{}
	info := g.manager.Status()
	switch {
	case info.Connected:
		data.Connected = true
	default:
		code, ok := g.manager.PairingChallenge()
		if !ok {
			data.RefreshSeconds = 3
			break
		}
		uri, err := qrDataURI(code)
		if err != nil {
			g.logger.Error("rendering QR code failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to render QR code", "")
			return
		}
		data.QRDataURI = uri
		data.RefreshSeconds = 30
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, data); err != nil {
		g.logger.Error("rendering QR page failed", "error", err)
	}
}

// qrDataURI encodes the pairing challenge as an inline PNG so the page needs
// no second request while the code is live.
func qrDataURI(code string) (template.URL, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 264)
	if err != nil {
		return "", fmt.Errorf("encoding QR png: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
