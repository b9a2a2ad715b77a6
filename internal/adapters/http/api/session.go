package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type signInRequest struct {
	UserID string `json:"user_id"`
}

// SessionHandler handles sign-in, sign-out and reset requests.
type SessionHandler struct {
	notifier Notifier
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(notifier Notifier) *SessionHandler {
	return &SessionHandler{notifier: notifier}
}

// HandleSignIn handles PUT /session.
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing user_id", ErrBadRequest))
		return
	}
	if err := h.notifier.SignIn(req.UserID); err != nil {
		writeError(w, http.StatusConflict, "session_fixed", fmt.Errorf("%w: %w", ErrSessionLocked, err))
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// HandleSignOut handles DELETE /session.
func (h *SessionHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.SignOut(); err != nil {
		writeError(w, http.StatusConflict, "session_fixed", fmt.Errorf("%w: %w", ErrSessionLocked, err))
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// HandleReset handles POST /session/reset.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	writeAccepted(w, h.notifier.ResetSession())
}
