package models

import "time"

// FilterChangeEvent tells gateway nodes that a stored filter changed and
// should be reloaded from the store.
type FilterChangeEvent struct {
	EventType    string    `json:"event_type"`
	Action       string    `json:"action"`
	FilterKey    string    `json:"filter_key"`
	FilterName   string    `json:"filter_name,omitempty"`
	PatternCount int       `json:"pattern_count"`
	Timestamp    time.Time `json:"timestamp"`
	ChangedBy    string    `json:"changed_by,omitempty"`
}

const (
	EventTypeFilterUpdated = "filter_updated"
)

const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionUpsertPattern  = "upsert_pattern"
	ActionSwapPatterns   = "swap_patterns"
	ActionImportPatterns = "import_patterns"
)

// Payload flattens the event into the envelope payload map.
func (e FilterChangeEvent) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"event_type":    e.EventType,
		"action":        e.Action,
		"filter_key":    e.FilterKey,
		"pattern_count": e.PatternCount,
		"timestamp":     e.Timestamp,
	}
	if e.FilterName != "" {
		payload["filter_name"] = e.FilterName
	}
	if e.ChangedBy != "" {
		payload["changed_by"] = e.ChangedBy
	}
	return payload
}
