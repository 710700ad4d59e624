// Package ledger owns XP, level and premium-currency progression.
package ledger

import (
	"errors"

	"example.com/aura/internal/domain"
)

// ErrInvalidRules is returned when the level ladder cannot terminate.
var ErrInvalidRules = errors.New("ledger: base level xp must be positive")

// Rules holds the economy constants.
type Rules struct {
	// BaseLevelXP scales the threshold for leaving a level: BaseLevelXP * level.
	BaseLevelXP int64
	// CrystalsPerLevel is the premium currency granted per level gained.
	CrystalsPerLevel int64
	// CoinRate is the XP-to-coin conversion divisor.
	CoinRate int64
}

// DefaultRules returns the production economy.
func DefaultRules() Rules {
	return Rules{
		BaseLevelXP:      1000,
		CrystalsPerLevel: 10,
		CoinRate:         20,
	}
}

// Result describes the effect of one Apply call.
type Result struct {
	NewXP           int64 `json:"new_xp"`
	NewLevel        int   `json:"new_level"`
	LeveledUp       bool  `json:"leveled_up"`
	LevelsGained    int   `json:"levels_gained"`
	CrystalsGranted int64 `json:"crystals_granted"`
	LifetimeXP      int64 `json:"lifetime_xp"`
}

// Threshold returns the XP needed to leave the given level.
func (r Rules) Threshold(level int) int64 {
	if level < 1 {
		level = 1
	}
	return r.BaseLevelXP * int64(level)
}

// Apply adds delta to p and resolves level-ups with carry-over. A single
// large delta may cross several levels; crystals accumulate per level gained.
func (r Rules) Apply(p *domain.Progress, delta int64) (Result, error) {
	if delta < 0 {
		return Result{}, domain.ErrNegativeXP
	}
	if r.BaseLevelXP <= 0 {
		return Result{}, ErrInvalidRules
	}
	if p.Level < 1 {
		p.Level = 1
	}

	p.XP += delta
	p.LifetimeXP += delta

	gained := 0
	for p.XP >= r.Threshold(p.Level) {
		p.XP -= r.Threshold(p.Level)
		p.Level++
		gained++
	}

	granted := int64(gained) * r.CrystalsPerLevel
	p.Crystals += granted

	return Result{
		NewXP:           p.XP,
		NewLevel:        p.Level,
		LeveledUp:       gained > 0,
		LevelsGained:    gained,
		CrystalsGranted: granted,
		LifetimeXP:      p.LifetimeXP,
	}, nil
}

// Coins converts activity XP into soft currency. Every rewarded activity
// grants at least one coin.
func (r Rules) Coins(xp int64) int64 {
	if xp <= 0 {
		return 0
	}
	rate := r.CoinRate
	if rate <= 0 {
		rate = 1
	}
	coins := xp / rate
	if coins < 1 {
		coins = 1
	}
	return coins
}
