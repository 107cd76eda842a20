package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/example/ec-admin-sync/internal/infrastructure/kafka"
)

// EventConsumer is the part of *kafka.Consumer a KafkaSource needs
type EventConsumer interface {
	Consume(ctx context.Context, handler kafka.MessageHandler) error
	Close() error
}

// KafkaSource feeds the backend's domain event topic into the Dispatcher,
// as an alternative to the websocket channel.
type KafkaSource struct {
	consumer EventConsumer
}

func NewKafkaSource(c EventConsumer) *KafkaSource {
	return &KafkaSource{consumer: c}
}

func (s *KafkaSource) Run(ctx context.Context, handler MessageHandler) error {
	err := s.consumer.Consume(ctx, func(ctx context.Context, _, value []byte) error {
		handler(ctx, EventToMessage(value))
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *KafkaSource) Close() error {
	return s.consumer.Close()
}

// EventToMessage rewrites a domain event ({"aggregate_type":"Product",
// "event_type":"ProductUpdated",...}) as an update message for its entity.
// Other payloads pass through unchanged.
func EventToMessage(value []byte) []byte {
	aggregate := gjson.GetBytes(value, "aggregate_type")
	if !aggregate.Exists() || aggregate.String() == "" {
		return value
	}
	out, err := json.Marshal(Message{
		Type:       TypeUpdate,
		EntityType: strings.ToLower(aggregate.String()),
		Message:    gjson.GetBytes(value, "event_type").String(),
	})
	if err != nil {
		return value
	}
	return out
}
