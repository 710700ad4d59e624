// Package consumer reads outbox events back from Kafka and hands them to the
// read-model handlers.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader is the subset of *kafka.Reader the processor drives.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler applies one decoded event to a read model.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryBackoff sets the pause between fetch and handler retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// WithHandlerAttempts bounds how many times a failing event is handled
// before the processor moves past it without committing.
func WithHandlerAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// Processor consumes one reader sequentially. Offsets are committed only
// after the handler succeeds, or for records that can never be decoded.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   *zap.Logger
	backoff  time.Duration
	attempts int
}

// NewProcessor returns a Processor feeding reader into handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   zap.NewNop(),
		backoff:  500 * time.Millisecond,
		attempts: 3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records until ctx is cancelled or the reader fails with a
// context error.
func (p *Processor) Run(ctx context.Context) error {
	for {
		rec, err := p.reader.FetchMessage(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			p.logger.Warn("fetch failed", zap.Error(err))
			if err := p.pause(ctx); err != nil {
				return err
			}
			continue
		}

		msg, err := decodeMessage(rec)
		if err != nil {
			p.logger.Warn("dropping undecodable record",
				zap.String("topic", rec.Topic),
				zap.Int("partition", rec.Partition),
				zap.Int64("offset", rec.Offset),
				zap.Error(err))
			recordDecodeError(rec.Topic)
			p.commit(ctx, rec)
			continue
		}

		if err := p.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("event left uncommitted",
				zap.String("event_type", msg.EventType),
				zap.String("account_id", msg.AggregateID),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			recordHandlerError(msg)
			continue
		}

		if p.commit(ctx, rec) {
			recordProcessed(msg)
		}
	}
}

func (p *Processor) handle(ctx context.Context, msg Message) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.handler.Handle(ctx, msg); err == nil {
			return nil
		}
		if attempt < p.attempts {
			p.logger.Debug("handler failed, retrying",
				zap.String("event_type", msg.EventType),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if perr := p.pause(ctx); perr != nil {
				return perr
			}
		}
	}
	return err
}

func (p *Processor) commit(ctx context.Context, rec kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, rec); err != nil {
		p.logger.Warn("commit failed", zap.Int64("offset", rec.Offset), zap.Error(err))
		return false
	}
	return true
}

func (p *Processor) pause(ctx context.Context) error {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
