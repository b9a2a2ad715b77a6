// Package api exposes the notifier's control and observation endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/lingoquest/internal/domain/display"
	"github.com/okian/lingoquest/internal/domain/model"
)

// Notifier is what the handlers drive. Entry points report false when the
// notifier is not running.
type Notifier interface {
	Initialize() bool
	Check() bool
	MarkAsSeen(id string) bool
	MarkAllAsSeen() bool
	ResetSession() bool

	SignIn(userID string) error
	SignOut() error

	CurrentPopup() (model.Achievement, bool)
	Unseen() []string
	SubscribePopup(ctx context.Context) <-chan *display.Popup
}

// Server wires HTTP routes for the control API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	achievementsHandler *AchievementsHandler
	sessionHandler      *SessionHandler
	streamHandler       *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(notifier Notifier, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		achievementsHandler: NewAchievementsHandler(notifier),
		sessionHandler:      NewSessionHandler(notifier),
		streamHandler:       NewStreamHandler(notifier),
	}
}

// Router returns a router with every route registered.
func (s *Server) Router(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	a := r.PathPrefix("/achievements").Subrouter()
	a.HandleFunc("/initialize", MetricsMiddleware(s.achievementsHandler.HandleInitialize, "initialize")).Methods(http.MethodPost)
	a.HandleFunc("/check", MetricsMiddleware(s.achievementsHandler.HandleCheck, "check")).Methods(http.MethodPost)
	a.HandleFunc("/popup", MetricsMiddleware(s.achievementsHandler.HandleGetPopup, "popup")).Methods(http.MethodGet)
	a.HandleFunc("/popup/stream", MetricsMiddleware(s.streamHandler.HandleStream, "popup_stream")).Methods(http.MethodGet)
	a.HandleFunc("/unseen", MetricsMiddleware(s.achievementsHandler.HandleGetUnseen, "unseen")).Methods(http.MethodGet)
	a.HandleFunc("/unseen/seen", MetricsMiddleware(s.achievementsHandler.HandleMarkAllSeen, "mark_all_seen")).Methods(http.MethodPost)
	a.HandleFunc("/unseen/{id}/seen", MetricsMiddleware(s.achievementsHandler.HandleMarkSeen, "mark_seen")).Methods(http.MethodPost)

	r.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleSignIn, "session_sign_in")).Methods(http.MethodPut)
	r.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleSignOut, "session_sign_out")).Methods(http.MethodDelete)
	r.HandleFunc("/session/reset", MetricsMiddleware(s.sessionHandler.HandleReset, "session_reset")).Methods(http.MethodPost)
}

type ackResponse struct {
	Status string `json:"status"`
}

var accepted = ackResponse{Status: "accepted"}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeAccepted answers a fire-and-forget request.
func writeAccepted(w http.ResponseWriter, ok bool) {
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "not_started", ErrNotStarted)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}
