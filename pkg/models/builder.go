package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeEnvelopeBuilder wraps a FilterChangeEvent for the change topic.
type ChangeEnvelopeBuilder struct {
	envelope MessageEnvelope
}

// NewChangeEnvelope starts an envelope for event. The envelope takes the
// event's type and timestamp, and a random ID until ID overrides it.
func NewChangeEnvelope(source string, event FilterChangeEvent) *ChangeEnvelopeBuilder {
	return &ChangeEnvelopeBuilder{
		envelope: MessageEnvelope{
			ID:        uuid.NewString(),
			Source:    source,
			Timestamp: event.Timestamp,
			Payload:   event.Payload(),
			Metadata:  Metadata{EventType: event.EventType},
		},
	}
}

func (b *ChangeEnvelopeBuilder) ID(id string) *ChangeEnvelopeBuilder {
	b.envelope.ID = id
	return b
}

func (b *ChangeEnvelopeBuilder) TraceID(traceID string) *ChangeEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

// KeyPrefix records the store namespace the filter key belongs to, so
// consumers sharing a topic can ignore other deployments.
func (b *ChangeEnvelopeBuilder) KeyPrefix(prefix string) *ChangeEnvelopeBuilder {
	b.envelope.Metadata.KeyPrefix = prefix
	return b
}

// Build stamps a missing timestamp and validates the result.
func (b *ChangeEnvelopeBuilder) Build() (*MessageEnvelope, error) {
	env := b.envelope
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if err := ValidateMessageEnvelope(&env); err != nil {
		return nil, err
	}
	return &env, nil
}
