// Package model contains domain models passed between layers.
package model

import "time"

// Achievement is the display record of an unlockable achievement as served
// by the content service. Values are treated as immutable.
type Achievement struct {
	ID          string         // achievement identifier
	Key         string         // unique content key, e.g. "first_quest"
	Name        string         // display name
	Description string         // display description
	IconURL     string         // icon reference
	Rarity      Rarity         // rarity tier
	XPReward    int            // experience awarded on unlock
	Metadata    map[string]any // optional structured metadata
	CreatedAt   time.Time
}

// UserAchievement records that a user has unlocked an achievement.
type UserAchievement struct {
	ID            string
	UserID        string
	AchievementID string
	LanguageID    *string // language context the unlock happened in, if any
	AwardedAt     time.Time
}

// AchievementIDs returns the achievement identifiers of records in the
// order they were given.
func AchievementIDs(records []UserAchievement) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.AchievementID
	}
	return ids
}
