package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/lingoquest/internal/domain/model"
)

type userAchievementJSON struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	LanguageID    *string   `json:"language_id,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}

type achievementJSON struct {
	ID          string         `json:"id"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IconURL     string         `json:"icon_url"`
	Rarity      string         `json:"rarity"`
	XPReward    int            `json:"xp_reward"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toUserAchievementJSON(r model.UserAchievement) userAchievementJSON {
	return userAchievementJSON{
		ID:            r.ID,
		UserID:        r.UserID,
		AchievementID: r.AchievementID,
		LanguageID:    r.LanguageID,
		AwardedAt:     r.AwardedAt,
	}
}

func toAchievementJSON(a model.Achievement) achievementJSON {
	return achievementJSON{
		ID:          a.ID,
		Key:         a.Key,
		Name:        a.Name,
		Description: a.Description,
		IconURL:     a.IconURL,
		Rarity:      string(a.Rarity),
		XPReward:    a.XPReward,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt,
	}
}

// Platform serves the simulated REST API.
type Platform struct {
	store    *Store
	failRate float64

	mu     sync.RWMutex
	userID string

	listServed   atomic.Int64
	detailServed atomic.Int64
	detailFailed atomic.Int64
	unlocked     atomic.Int64
}

// NewPlatform creates a platform over store with userID signed in.
func NewPlatform(store *Store, userID string, failRate float64) *Platform {
	return &Platform{store: store, userID: userID, failRate: failRate}
}

// Router returns the API routes mounted under /api.
func (p *Platform) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/me", p.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/achievements", p.handleList).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/unlock", p.handleUnlock).Methods(http.MethodPost)
	api.HandleFunc("/achievements/{id}", p.handleDetail).Methods(http.MethodGet)
	return r
}

// SetUser switches the signed-in user; empty signs out.
func (p *Platform) SetUser(userID string) {
	p.mu.Lock()
	p.userID = userID
	p.mu.Unlock()
}

// User returns the signed-in user.
func (p *Platform) User() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

// Unlock awards a random achievement to the signed-in user.
func (p *Platform) Unlock() (model.UserAchievement, error) {
	user := p.User()
	if user == "" {
		return model.UserAchievement{}, errors.New("no user signed in")
	}
	rec, err := p.store.Unlock(user)
	if err == nil {
		p.unlocked.Add(1)
	}
	return rec, err
}

// Stats returns the platform counters.
func (p *Platform) Stats() Stats {
	return Stats{
		Unlocked:     int(p.unlocked.Load()),
		DetailServed: int(p.detailServed.Load()),
		DetailFailed: int(p.detailFailed.Load()),
		ListServed:   int(p.listServed.Load()),
	}
}

func (p *Platform) handleMe(w http.ResponseWriter, _ *http.Request) {
	user := p.User()
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": user})
}

func (p *Platform) handleList(w http.ResponseWriter, r *http.Request) {
	records := p.store.List(mux.Vars(r)["id"])
	out := make([]userAchievementJSON, len(records))
	for i, rec := range records {
		out[i] = toUserAchievementJSON(rec)
	}
	p.listServed.Add(1)
	writeJSON(w, http.StatusOK, out)
}

func (p *Platform) handleUnlock(w http.ResponseWriter, r *http.Request) {
	rec, err := p.store.Unlock(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	p.unlocked.Add(1)
	writeJSON(w, http.StatusCreated, toUserAchievementJSON(rec))
}

func (p *Platform) handleDetail(w http.ResponseWriter, r *http.Request) {
	if p.failRate > 0 && getRandomFloat() < p.failRate {
		p.detailFailed.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure"})
		return
	}
	a, ok := p.store.Achievement(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	p.detailServed.Add(1)
	writeJSON(w, http.StatusOK, toAchievementJSON(a))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
