package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/aura/internal/events"
	"example.com/aura/internal/outbox"
)

func framed(schemaID uint32, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	value[0] = 0
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"account_id":"acct-1","lifetime_xp":1200}`)
	msg := kafka.Message{
		Topic:     events.TopicLedger,
		Partition: 0,
		Offset:    10,
		Key:       []byte("acct-1"),
		Time:      time.Now().UTC(),
		Value:     framed(42, payload),
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(events.TypeXPApplied)},
			{Key: outbox.HeaderAggregateID, Value: []byte("acct-1")},
			{Key: outbox.HeaderSchemaSubject, Value: []byte("aura_ledger_events-ledger.xp_applied")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeXPApplied, handler.last.EventType)
	require.Equal(t, "acct-1", handler.last.AggregateID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorFallsBackToKeyForAggregate(t *testing.T) {
	msg := kafka.Message{
		Key:     []byte("acct-9"),
		Value:   framed(1, []byte(`{}`)),
		Headers: []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeLevelUp)}},
	}
	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "acct-9", decoded.AggregateID)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:   events.TopicActivity,
		Offset:  20,
		Time:    time.Now().UTC(),
		Value:   framed(99, []byte(`{"account_id":"acct-2"}`)),
		Headers: []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeActivityScored)}},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler,
		WithLogger(zaptest.NewLogger(t)),
		WithRetryBackoff(time.Millisecond),
		WithHandlerAttempts(2))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 2, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsAfterHandlerRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{{
			Topic:   events.TopicLedger,
			Value:   framed(1, []byte(`{"account_id":"acct-4"}`)),
			Headers: []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeXPApplied)}},
		}},
		after: contextCanceled,
	}
	handler := &stubHandler{failures: 1, err: errors.New("redis timeout")}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)), WithRetryBackoff(time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestDecodeMessageErrors(t *testing.T) {
	typed := []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeXPApplied)}}

	_, err := decodeMessage(kafka.Message{Value: []byte{0, 1}})
	require.ErrorIs(t, err, errShortRecord)

	bad := framed(1, []byte(`{}`))
	bad[0] = 7
	_, err = decodeMessage(kafka.Message{Value: bad, Headers: typed})
	require.ErrorIs(t, err, errMagicByte)

	_, err = decodeMessage(kafka.Message{Value: framed(1, []byte(`{}`))})
	require.ErrorIs(t, err, errNoEventType)

	_, err = decodeMessage(kafka.Message{Value: framed(1, []byte(`nope`)), Headers: typed})
	require.ErrorIs(t, err, errInvalidPayload)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: events.TopicLedger, Value: []byte{0, 1}},
			{Topic: events.TopicLedger, Value: framed(1, []byte(`{}`))},
			{Topic: events.TopicLedger, Value: framed(1, []byte(`not json`)),
				Headers: []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeXPApplied)}}},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		errs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{{
			Value:   framed(1, []byte(`{}`)),
			Headers: []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte(events.TypeXPApplied)}},
		}},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)), WithRetryBackoff(time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

type stubReader struct {
	errs        []error
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	// failures limits err to the first n calls when positive.
	failures int
	err      error
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.failures > 0 && h.calls > h.failures {
		return nil
	}
	return h.err
}
