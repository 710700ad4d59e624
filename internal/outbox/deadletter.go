package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// deadLetter copies msgs into outbox_dlq and settles their outbox rows in one
// transaction.
func deadLetter(ctx context.Context, pool *pgxpool.Pool, msgs []Message, reason string) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`

	batch := &pgx.Batch{}
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		batch.Queue(insert,
			m.EventID, m.EventType, m.Topic, m.Payload,
			fmt.Sprintf("%s (topic=%s)", reason, m.Topic),
			m.AggregateType, m.AggregateID, m.SchemaSubject, m.PartitionKey,
		)
		ids = append(ids, m.EventID)
	}
	batch.Queue(`UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("dead-letter %d events: %w", len(msgs), err)
	}
	return tx.Commit(ctx)
}
