package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertEventLog = `
INSERT INTO event_log (topic, partition, "offset", event_type, account_id, payload, received_at)
VALUES (@topic, @partition, @offset, @event_type, @account_id, @payload, @received_at)
ON CONFLICT (topic, partition, "offset") DO NOTHING`

// PersistenceHandler keeps an audit trail of every consumed ledger event in
// event_log, keyed by its Kafka coordinates so redeliveries are no-ops.
type PersistenceHandler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPersistenceHandler returns a handler writing through pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool, now: time.Now}
}

func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	if msg.AggregateID == "" {
		return fmt.Errorf("event_log: %s at %s/%d/%d has no account id", msg.EventType, msg.Topic, msg.Partition, msg.Offset)
	}
	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = h.now()
	}

	_, err := h.pool.Exec(ctx, insertEventLog, pgx.NamedArgs{
		"topic":       msg.Topic,
		"partition":   msg.Partition,
		"offset":      msg.Offset,
		"event_type":  msg.EventType,
		"account_id":  msg.AggregateID,
		"payload":     msg.Payload,
		"received_at": receivedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("event_log: insert %s: %w", msg.EventType, err)
	}
	return nil
}
