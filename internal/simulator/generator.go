package simulator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lingoquest/internal/domain/model"
)

const randomFloatDivisor = 1000000

// Rarity weights out of 100 and XP per tier.
var rarityTable = []struct {
	rarity model.Rarity
	weight int
	xp     int
}{
	{model.RarityCommon, 60, 10},
	{model.RarityRare, 25, 25},
	{model.RarityEpic, 11, 50},
	{model.RarityLegendary, 4, 100},
}

var themes = []string{"Streak", "Vocabulary", "Grammar", "Listening", "Quest", "Dialogue", "Review", "Explorer"}

// getRandomFloat returns a random float64 in [0.0, 1.0) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomIndex returns a random index in [0, n).
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func pickRarity() (model.Rarity, int) {
	roll := randomIndex(100)
	for _, r := range rarityTable {
		if roll < r.weight {
			return r.rarity, r.xp
		}
		roll -= r.weight
	}
	last := rarityTable[len(rarityTable)-1]
	return last.rarity, last.xp
}

// GenerateCatalog creates n achievements with unique ids and a weighted
// rarity distribution.
func GenerateCatalog(n int, now time.Time) []model.Achievement {
	catalog := make([]model.Achievement, n)
	for i := range catalog {
		theme := themes[i%len(themes)]
		tier := i/len(themes) + 1
		rarity, xp := pickRarity()
		catalog[i] = model.Achievement{
			ID:          uuid.New().String(),
			Key:         fmt.Sprintf("%s_%d", theme, tier),
			Name:        fmt.Sprintf("%s %d", theme, tier),
			Description: fmt.Sprintf("Reach level %d in %s.", tier, theme),
			IconURL:     fmt.Sprintf("/icons/%s.png", theme),
			Rarity:      rarity,
			XPReward:    xp,
			CreatedAt:   now,
		}
	}
	return catalog
}
