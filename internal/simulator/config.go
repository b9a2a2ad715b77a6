// Package simulator runs a fake learning platform that serves the session,
// achievement list and achievement detail endpoints the notifier polls, and
// unlocks achievements for the signed-in user over time.
package simulator

import "time"

// Config holds configuration for the simulated platform.
type Config struct {
	Addr           string        // listen address
	UserID         string        // signed-in user; empty serves 401 on /auth/me
	CatalogSize    int           // number of achievements in the catalog
	InitialUnlocks int           // achievements already awarded at start
	UnlockInterval time.Duration // period between random unlocks; 0 disables
	FailRate       float64       // probability in [0,1] that a detail fetch fails
}

// DefaultConfig returns a configuration suitable for local runs.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		UserID:         "learner-1",
		CatalogSize:    40,
		InitialUnlocks: 3,
		UnlockInterval: 10 * time.Second,
	}
}

// Stats holds simulator counters.
type Stats struct {
	Unlocked     int
	DetailServed int
	DetailFailed int
	ListServed   int
}
