package memory

import "time"

// EventKind identifies a mutation of the stored fact set.
type EventKind string

const (
	EventRecorded EventKind = "fact_recorded"
	EventDeleted  EventKind = "fact_deleted"
	EventPruned   EventKind = "facts_pruned"
)

// Event describes a single store mutation. Transports broadcast these to
// live clients (the browser extension subscribes over websocket).
type Event struct {
	Kind     EventKind `json:"kind"`
	FactID   string    `json:"fact_id,omitempty"`
	Project  string    `json:"project,omitempty"`
	Category string    `json:"category,omitempty"`
	Pruned   int       `json:"pruned,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives events after a mutation has been persisted. Notify must
// not block; slow consumers drop events rather than stall the write path.
type Notifier interface {
	Notify(Event)
}
