package consumer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/aura/internal/outbox"
)

// wireHeaderLen is the Confluent framing: magic byte plus big-endian schema id.
const wireHeaderLen = 5

var (
	errShortRecord    = errors.New("record shorter than wire header")
	errMagicByte      = errors.New("unknown magic byte")
	errNoEventType    = errors.New("missing event_type header")
	errInvalidPayload = errors.New("payload is not valid json")
)

// Message is a ledger or activity event read back from Kafka.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

func decodeMessage(rec kafka.Message) (Message, error) {
	switch {
	case len(rec.Value) < wireHeaderLen:
		return Message{}, fmt.Errorf("%w: %d bytes", errShortRecord, len(rec.Value))
	case rec.Value[0] != 0:
		return Message{}, fmt.Errorf("%w: %#x", errMagicByte, rec.Value[0])
	}

	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType := headers[outbox.HeaderEventType]
	if eventType == "" {
		return Message{}, errNoEventType
	}
	accountID, ok := headers[outbox.HeaderAggregateID]
	if !ok {
		accountID = string(rec.Key)
	}

	body := rec.Value[wireHeaderLen:]
	if !json.Valid(body) {
		return Message{}, errInvalidPayload
	}

	return Message{
		Topic:         rec.Topic,
		Partition:     rec.Partition,
		Offset:        rec.Offset,
		Timestamp:     rec.Time,
		EventType:     eventType,
		AggregateID:   accountID,
		SchemaSubject: headers[outbox.HeaderSchemaSubject],
		SchemaID:      int(binary.BigEndian.Uint32(rec.Value[1:wireHeaderLen])),
		Payload:       append(json.RawMessage(nil), body...),
	}, nil
}
