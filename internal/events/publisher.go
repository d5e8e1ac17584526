package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Outbox hands out unpublished events in occurrence order. Drain must mark
// the batch published only when fn returns nil, so a failed send is retried
// on the next poll.
type Outbox interface {
	Drain(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) error) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

type Publisher struct {
	outbox    Outbox
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	newWriter func(brokers []string) MessageWriter
}

func NewPublisher(outbox Outbox, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		outbox:    outbox,
		logger:    logger.With(slog.String("component", "outbox_publisher")),
		brokers:   SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		newWriter: func(brokers []string) MessageWriter {
			return &kafka.Writer{
				Addr:                   kafka.TCP(brokers...),
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
			}
		},
	}
}

func (p *Publisher) Enabled() bool {
	return len(p.brokers) > 0
}

// Ping dials the first reachable broker. It is a readiness check, so a
// disabled publisher reports healthy.
func (p *Publisher) Ping(ctx context.Context) error {
	var lastErr error
	for _, b := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

// Run polls the outbox until ctx is done. Send failures are logged and the
// batch stays in the outbox.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return nil
	}

	writer := p.newWriter(p.brokers)
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.PublishOnce(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", slog.Int("count", n))
			}
		}
	}
}

// PublishOnce sends at most one batch and reports how many events went out.
func (p *Publisher) PublishOnce(ctx context.Context, writer MessageWriter) (int, error) {
	sent := 0
	err := p.outbox.Drain(ctx, p.batchSize, func(ctx context.Context, batch []Event) error {
		msgs := make([]kafka.Message, 0, len(batch))
		for _, e := range batch {
			msgs = append(msgs, Message(ctx, e))
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		sent = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// Message converts an outbox row to a Kafka message keyed by aggregate, so
// all events for one appointment land on one partition in order.
func Message(ctx context.Context, e Event) kafka.Message {
	msgCtx := ContextWithTraceContext(ctx, e.Traceparent, e.Tracestate)
	msg := kafka.Message{
		Topic: e.Type,
		Key:   []byte(e.AggregateID),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}

func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
