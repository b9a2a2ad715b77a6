package platform

import (
	"time"

	"github.com/okian/lingoquest/internal/domain/model"
)

type meResponse struct {
	ID string `json:"id"`
}

type userAchievementDTO struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	LanguageID    *string   `json:"language_id,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}

func (d userAchievementDTO) toModel() model.UserAchievement {
	return model.UserAchievement{
		ID:            d.ID,
		UserID:        d.UserID,
		AchievementID: d.AchievementID,
		LanguageID:    d.LanguageID,
		AwardedAt:     d.AwardedAt,
	}
}

type achievementDTO struct {
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

func (d achievementDTO) toModel() model.Achievement {
	return model.Achievement{
		ID:          d.ID,
		Key:         d.Key,
		Name:        d.Name,
		Description: d.Description,
		IconURL:     d.IconURL,
		Rarity:      model.ParseRarity(d.Rarity),
		XPReward:    d.XPReward,
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt,
	}
}
