package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kanzey-ticketing/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON events keyed by ticket id. The topic is set per message.
type Producer struct {
	Writer MessageWriter
	log    *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, log: log}
}

func NewProducerWithWriter(w MessageWriter, log *logger.Logger) *Producer {
	return &Producer{Writer: w, log: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("publish %s for %s failed: %v", topic, key, err))
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
