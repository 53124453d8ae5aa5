package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Producer struct {
	w        messageWriter
	closer   func() error
	attempts uint
	delay    time.Duration
}

func NewProducer(brokers []string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	p := newProducerWithWriter(w)
	p.closer = w.Close
	return p
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, attempts: 5, delay: 150 * time.Millisecond}
}

// WithRetry задаёт число попыток публикации. Kafka может быть не готова
// сразу после старта docker compose.
func (p *Producer) WithRetry(attempts uint, delay time.Duration) *Producer {
	if attempts > 0 {
		p.attempts = attempts
	}
	if delay > 0 {
		p.delay = delay
	}
	return p
}

// Publish пишет сообщение; ключом служит id подписки, чтобы события одной подписки шли в одну партицию.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := retry.Do(
		func() error {
			return p.w.WriteMessages(ctx, kafka.Message{
				Topic: topic,
				Key:   key,
				Value: value,
			})
		},
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("kafka publish retry", "topic", topic, "attempt", n, "error", err.Error())
		}),
	)
	if err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (p *Producer) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
