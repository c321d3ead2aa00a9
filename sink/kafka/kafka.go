// Package kafka publishes batches to a Kafka topic, one message per entry.
// The message key is the series name and the value its line-protocol
// rendering, so consumers can partition by series and parse with any
// InfluxDB line-protocol reader.
package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/nikiz24/monitor/v2/metric"
)

// Sink is a sink.Sink over a sarama SyncProducer.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	prefix   metric.Tag
	logger   *zap.Logger
}

// New wraps an existing producer. The sink takes ownership of it: Close
// closes the producer.
func New(producer sarama.SyncProducer, topic string, prefix metric.Tag, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{producer: producer, topic: topic, prefix: prefix, logger: logger}
}

// Dial connects a SyncProducer to brokers and returns a sink publishing to
// topic.
func Dial(brokers []string, topic string, prefix metric.Tag, logger *zap.Logger) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = "monitor"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return New(producer, topic, prefix, logger), nil
}

// Publish implements sink.Sink. Entries that cannot be rendered are skipped
// and logged; the rest are sent in one call.
func (s *Sink) Publish(batch metric.Batch) {
	msgs := make([]*sarama.ProducerMessage, 0, len(batch))
	for _, e := range batch {
		tag := e.Tag
		if s.prefix.HasPairs() {
			tag = s.prefix.Plus(tag)
		}
		line, err := e.Value.Influx(tag)
		if err != nil {
			s.logger.Warn("Skipping entry that cannot be rendered",
				zap.String("tag", e.Tag.String()), zap.Error(err))
			continue
		}
		if line == "" {
			continue
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:     s.topic,
			Key:       sarama.StringEncoder(tag.Name()),
			Value:     sarama.StringEncoder(line),
			Timestamp: e.Value.Captured(),
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := s.producer.SendMessages(msgs); err != nil {
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) {
			s.logger.Error("Failed to deliver some messages",
				zap.String("topic", s.topic), zap.Int("failed", len(perrs)), zap.Int("sent", len(msgs)-len(perrs)))
			return
		}
		s.logger.Error("Failed to deliver messages", zap.String("topic", s.topic), zap.Error(err))
	}
}

// Close closes the producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}
