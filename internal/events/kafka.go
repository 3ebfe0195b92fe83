package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher writes events to a Kafka topic asynchronously.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    logrus.FieldLogger
}

func NewKafkaPublisher(brokers []string, topic string, log logrus.FieldLogger) *KafkaPublisher {
	p := &KafkaPublisher{log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.onCompletion,
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.log.WithError(err).WithField("kind", evt.Kind).Error("failed to encode event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(evt.Key()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(evt.Kind)},
		},
		Time: evt.OccurredAt,
	}
	// Async writer: the error is only set for invalid messages; delivery
	// failures arrive in onCompletion.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.WithError(err).WithField("kind", evt.Kind).Error("failed to publish event")
	}
}

func (p *KafkaPublisher) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.log.WithError(err).WithField("count", len(messages)).Error("event delivery failed")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
