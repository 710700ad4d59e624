// Package outbox persists domain events next to the state change that caused
// them and relays them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Event is a domain event waiting to be written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	// DedupeKey suppresses a second insert of the same logical event.
	DedupeKey string
	Payload   interface{}
}

// Enqueue inserts evt inside the caller's transaction.
func Enqueue(ctx context.Context, tx pgx.Tx, evt Event) error {
	route, ok := Lookup(evt.EventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.EventType)
	}

	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", evt.EventType, err)
	}

	partitionKey := evt.PartitionKey
	if partitionKey == "" {
		partitionKey = evt.AggregateID
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		route.Topic,
		route.SchemaSubject,
		partitionKey,
		body,
		nullIfEmpty(evt.DedupeKey),
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
