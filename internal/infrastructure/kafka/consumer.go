package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// readErrorBackoff spaces out retries after a failed read
const readErrorBackoff = time.Second

type MessageHandler func(ctx context.Context, key, value []byte) error

// ConsumerConfig selects the topic and consumer group to read
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	reader *kafka.Reader
	log    *logrus.Entry
}

func NewConsumer(cfg ConsumerConfig, log *logrus.Entry) *Consumer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{
		reader: reader,
		log:    log.WithFields(logrus.Fields{"component": "kafka", "topic": cfg.Topic}),
	}
}

// Consume hands every message to handler until ctx ends. Handler errors
// are logged and the message is skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.WithError(err).Warn("error reading message")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(readErrorBackoff):
				}
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.log.WithError(err).WithField("offset", msg.Offset).Warn("error handling message")
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
