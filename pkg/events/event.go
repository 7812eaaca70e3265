package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "QUERY_EXECUTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewQueryExecutedEvent is emitted by the query execution pipeline after a
// refined question has been run against the warehouse. The payload carries
// enough to re-anchor follow-up turns on the returned rows.
func NewQueryExecutedEvent(sessionID, entityType string, entities []string, rowCount int) Event {
	return BaseEvent{
		Type: "query.executed",
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"entity_type": entityType,
			"entities":    entities,
			"row_count":   rowCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewRefinementRejectedEvent is emitted whenever a turn is refused because it
// would have silently changed the established question scope.
func NewRefinementRejectedEvent(sessionID, reason, detail, utterance string) Event {
	return BaseEvent{
		Type: "refinement.rejected",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
			"detail":     detail,
			"utterance":  utterance,
		},
		OccurredAt: time.Now(),
	}
}
