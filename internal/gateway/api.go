// ABOUTME: HTTP API handlers for session status and message dispatch.
// ABOUTME: Provides GET /status and POST /send-message for the booking backend.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/raissanails/wanotify/internal/notifier"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Connected bool   `json:"connected"`
	HasQR     bool   `json:"hasQR"`
	Message   string `json:"message"`
}

// SendMessageRequest is the JSON request body for POST /send-message.
type SendMessageRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// SendMessageResponse is the JSON response for a dispatched message.
type SendMessageResponse struct {
	Success     bool   `json:"success"`
	MessageID   string `json:"messageId"`
	PhoneNumber string `json:"phoneNumber"`
}

// ErrorResponse is the JSON body for every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleStatus handles GET /status requests. Always succeeds; the booking
// backend polls this to decide whether notifications will go out.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	info := g.manager.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		Connected: info.Connected,
		HasQR:     info.HasChallenge,
		Message:   info.Message,
	})
}

// handleSendMessage handles POST /send-message requests.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if req.PhoneNumber == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and message are required", "")
		return
	}

	receipt, err := g.manager.SendText(r.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		g.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		Success:     true,
		MessageID:   receipt.ID,
		PhoneNumber: receipt.Recipient,
	})
}

// writeSendError maps dispatch errors onto status codes. Unclassified errors
// are reported as 500 with details so the booking backend can log them.
func (g *Gateway) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notifier.ErrInvalidRecipient):
		writeError(w, http.StatusBadRequest, "invalid phone number", "")
	case errors.Is(err, notifier.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "WhatsApp is not connected", "")
	default:
		g.logger.Error("send failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send message", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
