package events

import "time"

// XPApplied is emitted on every committed ledger credit.
type XPApplied struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	Source      string    `json:"source"`
	Delta       int64     `json:"delta"`
	Level       int       `json:"level"`
	LifetimeXP  int64     `json:"lifetime_xp"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LevelUp is emitted when a credit crosses one or more level thresholds.
type LevelUp struct {
	AccountID       string    `json:"account_id"`
	DisplayName     string    `json:"display_name"`
	Level           int       `json:"level"`
	LevelsGained    int       `json:"levels_gained"`
	LifetimeXP      int64     `json:"lifetime_xp"`
	CrystalsGranted int64     `json:"crystals_granted"`
	OccurredAt      time.Time `json:"occurred_at"`
}
