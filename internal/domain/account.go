// Package domain holds the gamification model shared by the ingestion, ledger
// and mission components.
package domain

import "time"

// Provider names an external activity-tracking integration.
type Provider string

// ProviderStrava is the only provider wired today.
const ProviderStrava Provider = "strava"

// Progress is the ledger-owned slice of an account. XP is the amount carried
// inside the current level, LifetimeXP is everything ever earned.
type Progress struct {
	XP         int64
	Level      int
	Crystals   int64
	LifetimeXP int64
}

// Account is a player.
type Account struct {
	ID          string
	DisplayName string
	Progress    Progress
	Coins       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProgress returns the starting point for a freshly registered account.
func NewProgress() Progress {
	return Progress{Level: 1}
}

// Credential is the OAuth2 token pair linking an account to a provider athlete.
// It never leaves the service boundary.
type Credential struct {
	AccountID    string
	Provider     Provider
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	Connected    bool
	UpdatedAt    time.Time
}

// TokenSet is the result of a token exchange or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}
