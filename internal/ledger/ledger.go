package ledger

import (
	"context"

	"go.uber.org/zap"

	"example.com/aura/internal/domain"
)

// Store serialises read-modify-write access to an account's progress.
// Implementations must hold an exclusive lock on the account for the
// duration of fn and persist the mutated value only when fn succeeds.
type Store interface {
	UpdateProgress(ctx context.Context, accountID string, fn func(*domain.Progress) error) error
}

// Ledger applies XP deltas to stored accounts.
type Ledger struct {
	store  Store
	rules  Rules
	logger *zap.Logger
}

// New constructs a Ledger.
func New(store Store, rules Rules, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, rules: rules, logger: logger}
}

// Rules returns the ledger economy.
func (l *Ledger) Rules() Rules {
	return l.rules
}

// ApplyXP credits delta to the account and resolves level-ups.
func (l *Ledger) ApplyXP(ctx context.Context, accountID string, delta int64) (Result, error) {
	var result Result
	if err := l.store.UpdateProgress(ctx, accountID, l.Mutation(delta, &result)); err != nil {
		return Result{}, err
	}
	l.Committed(accountID, delta, result)
	return result, nil
}

// Mutation returns a progress mutator for stores that commit the ledger
// change together with other writes. result is filled in when the mutator runs.
func (l *Ledger) Mutation(delta int64, result *Result) func(*domain.Progress) error {
	return func(p *domain.Progress) error {
		applied, err := l.rules.Apply(p, delta)
		if err != nil {
			return err
		}
		*result = applied
		return nil
	}
}

// Committed records a persisted ledger change.
func (l *Ledger) Committed(accountID string, delta int64, result Result) {
	Observe(delta, result)
	if result.LeveledUp {
		l.logger.Info("level up",
			zap.String("account_id", accountID),
			zap.Int("level", result.NewLevel),
			zap.Int("levels_gained", result.LevelsGained),
			zap.Int64("crystals_granted", result.CrystalsGranted),
		)
	}
}
