package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/lingoquest/internal/domain/model"
)

// achievementResponse is the JSON shape of a displayed achievement.
type achievementResponse struct {
	ID          string         `json:"id"`
	Key         string         `json:"key,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IconURL     string         `json:"icon_url,omitempty"`
	Rarity      string         `json:"rarity"`
	RarityLabel string         `json:"rarity_label"`
	XPReward    int            `json:"xp_reward"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ShownAt     *time.Time     `json:"shown_at,omitempty"`
}

func newAchievementResponse(a model.Achievement) achievementResponse {
	return achievementResponse{
		ID:          a.ID,
		Key:         a.Key,
		Name:        a.Name,
		Description: a.Description,
		IconURL:     a.IconURL,
		Rarity:      string(a.Rarity),
		RarityLabel: a.Rarity.DisplayName(),
		XPReward:    a.XPReward,
		Metadata:    a.Metadata,
	}
}

type unseenResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// AchievementsHandler handles detection, popup and acknowledgment requests.
type AchievementsHandler struct {
	notifier Notifier
}

// NewAchievementsHandler creates a new achievements handler.
func NewAchievementsHandler(notifier Notifier) *AchievementsHandler {
	return &AchievementsHandler{notifier: notifier}
}

// HandleInitialize handles POST /achievements/initialize.
func (h *AchievementsHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	writeAccepted(w, h.notifier.Initialize())
}

// HandleCheck handles POST /achievements/check.
func (h *AchievementsHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	writeAccepted(w, h.notifier.Check())
}

// HandleGetPopup handles GET /achievements/popup. 204 means nothing is shown.
func (h *AchievementsHandler) HandleGetPopup(w http.ResponseWriter, r *http.Request) {
	a, ok := h.notifier.CurrentPopup()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, newAchievementResponse(a))
}

// HandleGetUnseen handles GET /achievements/unseen.
func (h *AchievementsHandler) HandleGetUnseen(w http.ResponseWriter, r *http.Request) {
	ids := h.notifier.Unseen()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, unseenResponse{IDs: ids, Count: len(ids)})
}

// HandleMarkSeen handles POST /achievements/unseen/{id}/seen.
func (h *AchievementsHandler) HandleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	writeAccepted(w, h.notifier.MarkAsSeen(id))
}

// HandleMarkAllSeen handles POST /achievements/unseen/seen.
func (h *AchievementsHandler) HandleMarkAllSeen(w http.ResponseWriter, r *http.Request) {
	writeAccepted(w, h.notifier.MarkAllAsSeen())
}
