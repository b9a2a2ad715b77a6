package simulator

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lingoquest/internal/domain/model"
)

// Error constants.
var (
	ErrUnknownAchievement = errors.New("unknown achievement")
	ErrCatalogExhausted   = errors.New("every achievement already awarded")
)

// Store keeps the catalog and the per-user awards.
type Store struct {
	mu      sync.RWMutex
	order   []string
	catalog map[string]model.Achievement
	awarded map[string][]model.UserAchievement
	now     func() time.Time
}

// NewStore creates a store over catalog.
func NewStore(catalog []model.Achievement) *Store {
	s := &Store{
		order:   make([]string, 0, len(catalog)),
		catalog: make(map[string]model.Achievement, len(catalog)),
		awarded: make(map[string][]model.UserAchievement),
		now:     time.Now,
	}
	for _, a := range catalog {
		s.order = append(s.order, a.ID)
		s.catalog[a.ID] = a
	}
	return s
}

// Achievement returns a catalog entry.
func (s *Store) Achievement(id string) (model.Achievement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.catalog[id]
	return a, ok
}

// List returns the user's awards, most recent first.
func (s *Store) List(userID string) []model.UserAchievement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.awarded[userID]
	out := make([]model.UserAchievement, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

// Award grants achievementID to userID. Awarding twice is a no-op that
// returns the existing record.
func (s *Store) Award(userID, achievementID string) (model.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[achievementID]; !ok {
		return model.UserAchievement{}, ErrUnknownAchievement
	}
	for _, r := range s.awarded[userID] {
		if r.AchievementID == achievementID {
			return r, nil
		}
	}
	rec := model.UserAchievement{
		ID:            uuid.New().String(),
		UserID:        userID,
		AchievementID: achievementID,
		AwardedAt:     s.now().UTC(),
	}
	s.awarded[userID] = append(s.awarded[userID], rec)
	return rec, nil
}

// Unlock awards a random achievement the user does not have yet.
func (s *Store) Unlock(userID string) (model.UserAchievement, error) {
	s.mu.RLock()
	have := make(map[string]struct{}, len(s.awarded[userID]))
	for _, r := range s.awarded[userID] {
		have[r.AchievementID] = struct{}{}
	}
	candidates := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if _, ok := have[id]; !ok {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return model.UserAchievement{}, ErrCatalogExhausted
	}
	return s.Award(userID, candidates[randomIndex(len(candidates))])
}
