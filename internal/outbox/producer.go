package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes outbox records through one writer shared by all
// topics. Records are hash-partitioned by key so the events of an account
// keep their order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer returns a producer for brokers. Batches are flushed
// after batchTimeout.
func NewKafkaProducer(brokers []string, batchTimeout time.Duration) *KafkaProducer {
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}}
}

// WriteMessages publishes msgs to topic and blocks until all are acknowledged.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending batches and releases broker connections.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
