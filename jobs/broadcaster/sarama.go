package broadcaster

import (
	"context"
	"sort"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// SaramaPublisher sends through a synchronous sarama producer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// SaramaConfig is the producer configuration used for trade events.
func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, SaramaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "sarama: new sync producer")
	}
	return NewSaramaPublisherFrom(producer, topic), nil
}

func NewSaramaPublisherFrom(p sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: p, topic: topic}
}

func (p *SaramaPublisher) Send(
	ctx context.Context,
	key []byte,
	value []byte,
	headers map[string]string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "sarama: send to %s", p.topic)
	}
	return nil
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
