// Package realtime keeps the entity stores fresh from push messages. A
// Source (the websocket Channel or a Kafka topic) feeds raw payloads to the
// Dispatcher, which records each one and refreshes the affected stores.
package realtime

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Message types
const (
	TypeUpdate  = "update"
	TypeHello   = "hello"
	TypeText    = "text"
	TypeWarning = "warning"
)

// Message is one inbound or outbound channel message
type Message struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
}

// Parse turns a raw payload into a Message. Plain text becomes a text
// message and malformed JSON a warning; nothing is dropped.
func Parse(data []byte) Message {
	s := strings.TrimSpace(string(data))
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return Message{Type: TypeText, Message: s}
	}
	if !gjson.Valid(s) {
		return Message{Type: TypeWarning, Message: s}
	}

	doc := gjson.Parse(s)
	if !doc.IsObject() {
		return Message{Type: TypeText, Message: s}
	}

	msg := Message{
		Type:       doc.Get("type").String(),
		EntityType: doc.Get("entityType").String(),
		ClientID:   doc.Get("clientId").String(),
	}
	if msg.Type == "" {
		msg.Type = TypeText
	}

	body := doc.Get("message")
	switch body.Type {
	case gjson.String:
		msg.Message = body.Str
	case gjson.Null:
	default:
		msg.Message = body.Raw
	}

	// The entity type may be nested in a JSON-encoded message body
	if msg.EntityType == "" && msg.Message != "" && gjson.Valid(msg.Message) {
		msg.EntityType = gjson.Get(msg.Message, "entityType").String()
	}
	return msg
}
