package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/events"
	"example.com/aura/internal/outbox"
)

// lockAccount takes the row lock that serialises every progress mutation.
func lockAccount(ctx context.Context, tx pgx.Tx, accountID string) (domain.Account, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id=$1 FOR UPDATE`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, err
}

func saveProgress(ctx context.Context, tx pgx.Tx, account *domain.Account, coins int64) error {
	return tx.QueryRow(ctx,
		`UPDATE accounts
            SET xp=$2, level=$3, lifetime_xp=$4, crystals=$5, coins=coins+$6, updated_at=NOW()
          WHERE account_id=$1
      RETURNING coins, updated_at`,
		account.ID, account.Progress.XP, account.Progress.Level, account.Progress.LifetimeXP, account.Progress.Crystals, coins,
	).Scan(&account.Coins, &account.UpdatedAt)
}

// emitLedgerEvents enqueues xp_applied and, when levels were gained, level_up.
// An empty dedupePrefix disables outbox de-duplication.
func emitLedgerEvents(ctx context.Context, tx pgx.Tx, account domain.Account, before domain.Progress, source, dedupePrefix string, at time.Time) error {
	after := account.Progress
	dedupe := func(suffix string) string {
		if dedupePrefix == "" {
			return ""
		}
		return dedupePrefix + ":" + suffix
	}

	if err := outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "account",
		AggregateID:   account.ID,
		EventType:     events.TypeXPApplied,
		DedupeKey:     dedupe("xp"),
		Payload: events.XPApplied{
			AccountID:   account.ID,
			DisplayName: account.DisplayName,
			Source:      source,
			Delta:       after.LifetimeXP - before.LifetimeXP,
			Level:       after.Level,
			LifetimeXP:  after.LifetimeXP,
			OccurredAt:  at,
		},
	}); err != nil {
		return fmt.Errorf("enqueue xp_applied: %w", err)
	}

	if after.Level <= before.Level {
		return nil
	}
	if err := outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "account",
		AggregateID:   account.ID,
		EventType:     events.TypeLevelUp,
		DedupeKey:     dedupe("level"),
		Payload: events.LevelUp{
			AccountID:       account.ID,
			DisplayName:     account.DisplayName,
			Level:           after.Level,
			LevelsGained:    after.Level - before.Level,
			LifetimeXP:      after.LifetimeXP,
			CrystalsGranted: after.Crystals - before.Crystals,
			OccurredAt:      at,
		},
	}); err != nil {
		return fmt.Errorf("enqueue level_up: %w", err)
	}
	return nil
}

// UpdateProgress applies fn to the account's progress under a row lock.
func (r *Repository) UpdateProgress(ctx context.Context, accountID string, fn func(*domain.Progress) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	before := account.Progress
	if err := fn(&account.Progress); err != nil {
		return err
	}
	if err := saveProgress(ctx, tx, &account, 0); err != nil {
		return err
	}
	if err := emitLedgerEvents(ctx, tx, account, before, events.SourceGrant, "", r.now()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
