package kafka

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes trade events through a kafka-go Writer.
type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

// Send writes one message and waits for all in-sync replicas.
func (p *Producer) Send(
	ctx context.Context,
	key []byte,
	value []byte,
	headers map[string]string,
) error {
	msg := kafka.Message{Key: key, Value: value}

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(headers[k])})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "kafka-go: write to %s", p.topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
