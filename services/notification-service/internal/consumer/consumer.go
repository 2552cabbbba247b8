package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/timely/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Reader is the subset of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	retries int
	backoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
	// Retries is how many extra attempts a failing handler gets before the event is skipped.
	Retries int
	Backoff time.Duration
}

func New(logger *slog.Logger, inboxRepo Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(logger, inboxRepo, reader, cfg, handler)
}

func NewWithReader(logger *slog.Logger, inboxRepo Inbox, reader Reader, cfg Config, handler Handler) *Consumer {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxSpan, span := kafkax.StartConsumeSpan(ctx, msg)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	for attempt := 0; ; attempt++ {
		err = c.handler(ctxSpan, msg)
		if err == nil {
			return
		}
		span.RecordError(err)
		if attempt >= c.retries || !sleep(ctx, c.backoff) {
			break
		}
		c.logger.Warn("handler failed; retrying", "err", err, "event_id", meta.EventID, "attempt", attempt+1)
	}

	c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
	if ferr := c.inbox.Forget(context.WithoutCancel(ctx), meta.EventID); ferr != nil {
		c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
