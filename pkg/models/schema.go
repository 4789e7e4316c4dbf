package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func fieldError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// requiredPayloadFields must be non-empty strings in every change event.
var requiredPayloadFields = []string{"event_type", "action", "filter_key"}

var knownActions = map[string]bool{
	ActionCreate:         true,
	ActionUpdate:         true,
	ActionDelete:         true,
	ActionUpsertPattern:  true,
	ActionSwapPatterns:   true,
	ActionImportPatterns: true,
}

// ValidateMessageEnvelope checks that msg is a well-formed filter change
// event before it is written to the change topic.
func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	switch {
	case msg == nil:
		return fieldError("envelope", "message envelope cannot be nil")
	case msg.ID == "":
		return fieldError("id", "message ID is required")
	case msg.Source == "":
		return fieldError("source", "message source is required")
	case msg.Timestamp.IsZero():
		return fieldError("timestamp", "message timestamp is required")
	case msg.Payload == nil:
		return fieldError("payload", "message payload cannot be nil")
	}

	values := make(map[string]string, len(requiredPayloadFields))
	for _, name := range requiredPayloadFields {
		v, _ := msg.Payload[name].(string)
		if v == "" {
			return fieldError("payload."+name, "change events must carry %s", name)
		}
		values[name] = v
	}

	if !knownActions[values["action"]] {
		return fieldError("payload.action", "unknown action %q", values["action"])
	}
	if et := msg.Metadata.EventType; et != "" && et != values["event_type"] {
		return fieldError("metadata.event_type", "%q does not match payload event type %q", et, values["event_type"])
	}
	return nil
}

// FilterKey returns the payload's filter_key, or "" when it is missing.
func (msg *MessageEnvelope) FilterKey() string {
	key, _ := msg.Payload["filter_key"].(string)
	return key
}
