package domain

import "time"

// EventKind tags the variant of a broadcast event.
type EventKind string

const (
	// Mutation events, emitted only after the store write committed.
	EventDisasterCreated EventKind = "disaster_created"
	EventDisasterUpdated EventKind = "disaster_updated"
	EventDisasterDeleted EventKind = "disaster_deleted"

	// Connection lifecycle events, local to the registry.
	EventConnected EventKind = "connected"
	EventPing      EventKind = "ping"
)

// BroadcastEvent is pushed to every live observer connection. Created and
// Updated carry a full record snapshot; Deleted carries only the identifier.
type BroadcastEvent struct {
	Kind       EventKind       `json:"kind"`
	Record     *DisasterRecord `json:"record,omitempty"`
	RecordID   string          `json:"record_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// CreatedEvent builds the fan-out event for a freshly inserted record.
func CreatedEvent(rec DisasterRecord, at time.Time) BroadcastEvent {
	return BroadcastEvent{Kind: EventDisasterCreated, Record: &rec, RecordID: rec.ID, OccurredAt: at}
}

// UpdatedEvent builds the fan-out event for a committed update.
func UpdatedEvent(rec DisasterRecord, at time.Time) BroadcastEvent {
	return BroadcastEvent{Kind: EventDisasterUpdated, Record: &rec, RecordID: rec.ID, OccurredAt: at}
}

// DeletedEvent builds the fan-out event for a committed delete. Only the
// identifier survives the record.
func DeletedEvent(recordID string, at time.Time) BroadcastEvent {
	return BroadcastEvent{Kind: EventDisasterDeleted, RecordID: recordID, OccurredAt: at}
}
