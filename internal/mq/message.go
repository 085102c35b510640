package mq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics used between the scheduler and the settlement recorder
const (
	TopicMatches     = "matches"
	TopicCompletions = "completions"
)

// Message is an envelope for events flowing between matcher components
type Message struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`

	// Payload is the JSON-encoded event
	Payload json.RawMessage `json:"payload"`

	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	// Attempt counts deliveries that ended in a handler error
	Attempt int `json:"attempt,omitempty"`
}

// NewMessage creates a message with a fresh ID, marshaling payload to JSON
func NewMessage(topic string, payload interface{}) (*Message, error) {
	return NewMessageWithID(uuid.New().String(), topic, payload)
}

// NewMessageWithID creates a message with a caller-chosen ID
func NewMessageWithID(id, topic string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Topic:     topic,
		Payload:   data,
		Headers:   make(map[string]string),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Unmarshal decodes the payload into v
func (m *Message) Unmarshal(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// WithHeader sets a header and returns the message for chaining
func (m *Message) WithHeader(key, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
	return m
}

// GetHeader returns a header value
func (m *Message) GetHeader(key string) (string, bool) {
	val, ok := m.Headers[key]
	return val, ok
}
