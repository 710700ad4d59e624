package postgres

import (
	"context"

	"example.com/aura/internal/domain"
)

// RecordFailure stores a failed webhook notification.
func (r *Repository) RecordFailure(ctx context.Context, f domain.WebhookFailure) error {
	payload := f.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_failures (stage, reason, owner_id, object_id, payload) VALUES ($1,$2,$3,$4,$5)`,
		f.Stage, f.Reason, f.OwnerID, f.ObjectID, payload)
	return err
}

// ListFailures returns unresolved failures, oldest first.
func (r *Repository) ListFailures(ctx context.Context, limit int) ([]domain.WebhookFailure, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT failure_id, stage, reason, owner_id, object_id, payload, attempts, created_at, resolved_at
           FROM webhook_failures
          WHERE resolved_at IS NULL
          ORDER BY created_at, failure_id
          LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := make([]domain.WebhookFailure, 0)
	for rows.Next() {
		var f domain.WebhookFailure
		if err := rows.Scan(&f.ID, &f.Stage, &f.Reason, &f.OwnerID, &f.ObjectID, &f.Payload, &f.Attempts, &f.CreatedAt, &f.ResolvedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// ResolveFailure marks a failure as handled.
func (r *Repository) ResolveFailure(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE webhook_failures SET resolved_at=NOW() WHERE failure_id=$1`, id)
	return err
}

// RecordFailureAttempt bumps the attempt counter after an unsuccessful replay.
func (r *Repository) RecordFailureAttempt(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE webhook_failures SET attempts=attempts+1, reason=$2 WHERE failure_id=$1`, id, reason)
	return err
}
