package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is a domain event emitted after a mutation commits. AggregateID is
// the id of the claim, vendor request, or payment the event concerns.
// Consumers treat events as invalidation hints, never as authoritative state.
type Event struct {
	ID          string                 `json:"id"`
	Type        Type                   `json:"type"`
	AggregateID int64                  `json:"aggregate_id"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   time.Time              `json:"timestamp"`
}

// New creates a domain event with an auto-generated ID and timestamp
func New(eventType Type, aggregateID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:          generateID(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	return &Event{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID,
		Payload:     payload,
		Timestamp:   e.Timestamp,
	}
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// PayloadInt retrieves an int64 value from the payload
func (e *Event) PayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
