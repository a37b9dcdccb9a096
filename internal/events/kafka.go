package events

import (
	"errors"
	"fmt"
	"time"

	"staybooking/internal/config"

	"github.com/IBM/sarama"
)

// KafkaForwarder copies bus events to a Kafka topic.
type KafkaForwarder struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer builds an idempotent sync producer for cfg.Brokers.
func NewKafkaProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 5
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaForwarder(producer sarama.SyncProducer, topic string) *KafkaForwarder {
	return &KafkaForwarder{producer: producer, topic: topic}
}

// Attach subscribes the forwarder to every event on the bus.
func (f *KafkaForwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Handle)
}

// Handle sends one event. The event type is the message key.
func (f *KafkaForwarder) Handle(event *Event) error {
	msg := &sarama.ProducerMessage{
		Topic: f.topic,
		Key:   sarama.StringEncoder(event.Type),
		Value: sarama.ByteEncoder(event.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("created_at"), Value: []byte(event.CreatedAt.UTC().Format(time.RFC3339))},
		},
	}
	if _, _, err := f.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send %s: %w", event.Type, err)
	}
	return nil
}

func (f *KafkaForwarder) Close() error {
	if f.producer == nil {
		return nil
	}
	return f.producer.Close()
}
