package processors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Control events understood besides "<kind>.<action>" change events.
const (
	TypeSyncRequested      = "sync.requested"
	TypeBootstrapRequested = "bootstrap.requested"
)

// Event is the message carried on the commerce events topic.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Fields    []string  `json:"fields,omitempty"`
	Kinds     []string  `json:"kinds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Decode parses a message value into an Event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return ev, nil
}

// Encode is the inverse of Decode.
func Encode(ev Event) ([]byte, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return json.Marshal(ev)
}
