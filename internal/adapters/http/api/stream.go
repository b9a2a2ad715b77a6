package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamHeartbeatInterval = 15 * time.Second

// StreamHandler pushes popup changes as server-sent events.
type StreamHandler struct {
	notifier  Notifier
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(notifier Notifier) *StreamHandler {
	return &StreamHandler{notifier: notifier, heartbeat: streamHeartbeatInterval}
}

// HandleStream handles GET /achievements/popup/stream. Each change emits a
// "popup" event carrying the achievement, or a "clear" event when the screen
// empties.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no_streaming", ErrNoStreaming)
		return
	}

	ctx := r.Context()
	updates := h.notifier.SubscribePopup(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case p, ok := <-updates:
			if !ok {
				return
			}
			if p == nil {
				_, _ = fmt.Fprint(w, "event: clear\ndata: {}\n\n")
			} else {
				resp := newAchievementResponse(p.Achievement)
				shownAt := p.ShownAt
				resp.ShownAt = &shownAt
				data, err := json.Marshal(resp)
				if err != nil {
					continue
				}
				_, _ = fmt.Fprintf(w, "event: popup\ndata: %s\n\n", data)
			}
			flusher.Flush()
		}
	}
}
