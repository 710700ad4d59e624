package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message headers set on every published record.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderAggregateID   = "aggregate_id"
)

// claimTimeout is how long a claimed but unsettled row stays invisible to
// other dispatchers.
const claimTimeout = time.Minute

// Message is one claimed outbox row.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Dispatcher relays committed outbox rows to Kafka with Confluent framing.
// Topics are published independently: a failing topic is dead-lettered
// without holding back the others.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger

	mu        sync.Mutex
	schemaIDs map[string]int

	done chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		schemaIDs:    make(map[string]int),
		done:         make(chan struct{}),
	}
}

// Start polls until ctx is cancelled. Run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.done)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return err
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	published, failures := d.publish(ctx, messages)

	var errs []error
	if len(published) > 0 {
		if err := d.settle(ctx, published); err != nil {
			errs = append(errs, err)
		} else {
			recordPublished(published)
		}
	}
	for reason, msgs := range failures {
		d.logger.Warn("dead-lettering outbox events",
			zap.Int("count", len(msgs)),
			zap.String("topic", msgs[0].Topic),
			zap.String("reason", reason))
		if err := deadLetter(ctx, d.pool, msgs, reason); err != nil {
			errs = append(errs, err)
			continue
		}
		recordDeadLettered(msgs)
	}
	return errors.Join(errs...)
}

// claim selects unpublished rows and stamps claimed_at so concurrent
// dispatchers skip them.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
           FROM outbox
          WHERE published_at IS NULL
            AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
          ORDER BY event_id
          LIMIT $1
          FOR UPDATE SKIP LOCKED`,
		d.batchSize, claimTimeout)
	if err != nil {
		return nil, err
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// publish writes messages grouped by topic. It returns the messages Kafka
// accepted and, keyed by failure reason, the ones that must be dead-lettered.
func (d *Dispatcher) publish(ctx context.Context, messages []Message) ([]Message, map[string][]Message) {
	failures := make(map[string][]Message)
	byTopic := make(map[string][]Message)
	var topics []string

	for _, msg := range messages {
		if _, ok := Lookup(msg.EventType); !ok {
			reason := fmt.Sprintf("no schema metadata for event_type=%s", msg.EventType)
			failures[reason] = append(failures[reason], msg)
			continue
		}
		if _, seen := byTopic[msg.Topic]; !seen {
			topics = append(topics, msg.Topic)
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], msg)
	}

	published := make([]Message, 0, len(messages))
	for _, topic := range topics {
		pending := byTopic[topic]
		records := make([]kafka.Message, 0, len(pending))
		framed := make([]Message, 0, len(pending))
		for _, msg := range pending {
			record, err := d.record(ctx, msg)
			if err != nil {
				failures[err.Error()] = append(failures[err.Error()], msg)
				continue
			}
			records = append(records, record)
			framed = append(framed, msg)
		}
		if len(records) == 0 {
			continue
		}
		if err := d.producer.WriteMessages(ctx, topic, records...); err != nil {
			failures[err.Error()] = append(failures[err.Error()], framed...)
			continue
		}
		published = append(published, framed...)
	}
	return published, failures
}

func (d *Dispatcher) record(ctx context.Context, msg Message) (kafka.Message, error) {
	route, _ := Lookup(msg.EventType)
	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, route.Schema)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("register schema %s: %w", msg.SchemaSubject, err)
	}
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: frame(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			{Key: HeaderAggregateID, Value: []byte(msg.AggregateID)},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	d.mu.Lock()
	id, ok := d.schemaIDs[subject]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.schemaIDs[subject] = id
	d.mu.Unlock()
	return id, nil
}

func (d *Dispatcher) settle(ctx context.Context, messages []Message) error {
	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages))
	return err
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.EventID
	}
	return ids
}

// frame prefixes payload with the Confluent magic byte and schema id.
func frame(schemaID int, payload []byte) []byte {
	out := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(out[1:5], uint32(schemaID))
	copy(out[5:], payload)
	return out
}
