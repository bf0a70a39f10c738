package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire frame for every push event, in both directions.
type Envelope struct {
	Event      string          `json:"event"`
	Room       string          `json:"room,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and stamps the envelope with the current time.
func NewEnvelope(event, room string, payload interface{}) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		raw = b
	}
	return Envelope{
		Event:      event,
		Room:       room,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}
