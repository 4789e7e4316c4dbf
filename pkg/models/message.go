package models

import "time"

// MessageEnvelope is the JSON document written to the change topic.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID   string `json:"trace_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}
