package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeEnvelope(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := FilterChangeEvent{
		EventType:    EventTypeFilterUpdated,
		Action:       ActionCreate,
		FilterKey:    "injection-filter#abc",
		FilterName:   "sql",
		PatternCount: 2,
		Timestamp:    ts,
	}

	env, err := NewChangeEnvelope("filterctl", event).
		ID("id-1").
		KeyPrefix("injection-filter#").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "id-1", env.ID)
	assert.Equal(t, ts, env.Timestamp)
	assert.Equal(t, "injection-filter#", env.Metadata.KeyPrefix)
	assert.Equal(t, EventTypeFilterUpdated, env.Metadata.EventType)

	assert.Equal(t, "injection-filter#abc", env.FilterKey())
	assert.Empty(t, (&MessageEnvelope{}).FilterKey())
}

func TestNewChangeEnvelope_Defaults(t *testing.T) {
	env, err := NewChangeEnvelope("filterctl", FilterChangeEvent{
		EventType: EventTypeFilterUpdated,
		Action:    ActionSwapPatterns,
		FilterKey: "injection-filter#abc",
	}).Build()
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
}

func TestNewChangeEnvelope_RejectsInvalidEvent(t *testing.T) {
	_, err := NewChangeEnvelope("filterctl", FilterChangeEvent{
		EventType: EventTypeFilterUpdated,
		Action:    "rename",
		FilterKey: "injection-filter#abc",
	}).Build()

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payload.action", vErr.Field)
}

func TestValidateMessageEnvelope(t *testing.T) {
	valid := func() *MessageEnvelope {
		return &MessageEnvelope{
			ID:        "1",
			Source:    "filterctl",
			Timestamp: time.Now(),
			Payload: map[string]interface{}{
				"event_type": EventTypeFilterUpdated,
				"action":     ActionDelete,
				"filter_key": "k",
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*MessageEnvelope)
		field  string
	}{
		{"missing id", func(m *MessageEnvelope) { m.ID = "" }, "id"},
		{"missing source", func(m *MessageEnvelope) { m.Source = "" }, "source"},
		{"zero timestamp", func(m *MessageEnvelope) { m.Timestamp = time.Time{} }, "timestamp"},
		{"nil payload", func(m *MessageEnvelope) { m.Payload = nil }, "payload"},
		{"no event type", func(m *MessageEnvelope) { delete(m.Payload, "event_type") }, "payload.event_type"},
		{"empty filter key", func(m *MessageEnvelope) { m.Payload["filter_key"] = "" }, "payload.filter_key"},
		{"non-string action", func(m *MessageEnvelope) { m.Payload["action"] = 3 }, "payload.action"},
		{"unknown action", func(m *MessageEnvelope) { m.Payload["action"] = "rename" }, "payload.action"},
		{"event type mismatch", func(m *MessageEnvelope) { m.Metadata.EventType = "other" }, "metadata.event_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid()
			tt.mutate(msg)
			err := ValidateMessageEnvelope(msg)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.NoError(t, ValidateMessageEnvelope(valid()))
	assert.Error(t, ValidateMessageEnvelope(nil))
}
