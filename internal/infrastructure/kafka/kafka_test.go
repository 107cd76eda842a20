package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_Message(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "admin-audit")
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	msg, err := p.message("products", map[string]string{"type": "update", "entityType": "products"})

	require.NoError(t, err)
	assert.Equal(t, []byte("products"), msg.Key)
	assert.JSONEq(t, `{"type":"update","entityType":"products"}`, string(msg.Value))
	assert.Equal(t, fixed, msg.Time)
}

func TestProducer_MessageRejectsUnencodable(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "admin-audit")

	_, err := p.message("k", make(chan int))
	assert.Error(t, err)
}

func TestNewConsumer_Config(t *testing.T) {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "ec-events"}, nil)
	defer c.Close()

	cfg := c.reader.Config()
	assert.Equal(t, "ec-events", cfg.Topic)
	assert.Equal(t, 1, cfg.MinBytes)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
}
