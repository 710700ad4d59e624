package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/aura/internal/domain"
	"example.com/aura/internal/events"
	"example.com/aura/internal/outbox"
)

const activityColumns = `record_id, provider, external_id, account_id, activity_type, name, distance_m, moving_time_s,
        elevation_gain_m, average_speed_mps, start_date_local, xp_awarded, coins_awarded, bonuses, created_at`

// ActivityExists reports whether the provider activity already has a record.
func (r *Repository) ActivityExists(ctx context.Context, provider domain.Provider, externalID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM activity_records WHERE provider=$1 AND external_id=$2)`,
		string(provider), externalID).Scan(&exists)
	return exists, err
}

// CommitActivity stores the record, applies the ledger mutation, credits the
// record's coins and enqueues the resulting events in one transaction. It
// returns domain.ErrDuplicateActivity when the provider activity is already
// recorded.
func (r *Repository) CommitActivity(ctx context.Context, record domain.ActivityRecord, apply func(*domain.Progress) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, record.AccountID)
	if err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	bonuses := record.Bonuses
	if bonuses == nil {
		bonuses = []string{}
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO activity_records (`+activityColumns+`)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
         ON CONFLICT (provider, external_id) DO NOTHING`,
		record.ID, string(record.Provider), record.ExternalID, record.AccountID, record.ActivityType, record.Name,
		record.DistanceM, record.MovingTimeS, record.ElevationGainM, record.AverageSpeedMPS, record.StartDateLocal,
		record.XPAwarded, record.CoinsAwarded, bonuses, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateActivity
	}

	before := account.Progress
	if err := apply(&account.Progress); err != nil {
		return err
	}
	if err := saveProgress(ctx, tx, &account, record.CoinsAwarded); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	dedupePrefix := fmt.Sprintf("activity:%s:%d", record.Provider, record.ExternalID)
	if err := outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "account",
		AggregateID:   account.ID,
		EventType:     events.TypeActivityScored,
		DedupeKey:     dedupePrefix + ":scored",
		Payload: events.ActivityScored{
			AccountID:  account.ID,
			RecordID:   record.ID,
			Provider:   string(record.Provider),
			ExternalID: record.ExternalID,
			XP:         record.XPAwarded,
			Coins:      record.CoinsAwarded,
			Bonuses:    bonuses,
			OccurredAt: record.CreatedAt,
		},
	}); err != nil {
		return fmt.Errorf("enqueue activity.scored: %w", err)
	}
	if err := emitLedgerEvents(ctx, tx, account, before, events.SourceActivity, dedupePrefix, record.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanActivity(row pgx.Row) (domain.ActivityRecord, error) {
	var rec domain.ActivityRecord
	var provider string
	err := row.Scan(&rec.ID, &provider, &rec.ExternalID, &rec.AccountID, &rec.ActivityType, &rec.Name, &rec.DistanceM, &rec.MovingTimeS,
		&rec.ElevationGainM, &rec.AverageSpeedMPS, &rec.StartDateLocal, &rec.XPAwarded, &rec.CoinsAwarded, &rec.Bonuses, &rec.CreatedAt)
	rec.Provider = domain.Provider(provider)
	return rec, err
}

// ListActivities returns an account's activity history, newest first.
func (r *Repository) ListActivities(ctx context.Context, accountID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return []domain.ActivityRecord{}, nil, nil
	}

	args := []interface{}{accountID, limit}
	query := `SELECT ` + activityColumns + ` FROM activity_records WHERE account_id=$1`
	if cursor != nil {
		query += ` AND (created_at, record_id) < ($3, $4::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, record_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivityRecord, 0, limit)
	for rows.Next() {
		rec, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// HasActivityOn reports whether an activity started on the provider-local day.
func (r *Repository) HasActivityOn(ctx context.Context, accountID, day string) (bool, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
            SELECT 1 FROM activity_records
             WHERE account_id=$1 AND substring(start_date_local from 1 for 10) = $2)`,
		accountID, day).Scan(&exists)
	return exists, err
}
