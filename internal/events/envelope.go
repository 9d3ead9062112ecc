package events

import (
	"encoding/json"
)

// Envelope is the JSON form of an event on sockets and on the Redis mirror.
type Envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func Encode(e Event) ([]byte, error) {
	var payload json.RawMessage
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		payload = raw
	}
	return json.Marshal(Envelope{
		Type:      e.Type,
		SessionID: e.SessionID,
		Payload:   payload,
		Timestamp: e.OccurredAt.UnixMilli(),
	})
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
