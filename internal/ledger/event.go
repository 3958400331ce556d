package ledger

import (
	"encoding/json"
	"time"
)

// StoredEvent is the only persisted unit: an opaque typed fact with causal
// metadata. Seq is assigned by the store, never by callers, and events are
// immutable once persisted; the ledger has no update or delete path.
type StoredEvent struct {
	Seq           int64           `json:"seq"`
	TS            time.Time       `json:"ts"`
	EventType     string          `json:"eventType"`
	ParentSeq     *int64          `json:"parentSeq,omitempty"`
	CausedBySeq   *int64          `json:"causedBySeq,omitempty"`
	RunID         string          `json:"runId,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	SchemaVersion int             `json:"schemaVersion"`
}

// AppendEvent is the unpersisted request a caller builds before handing it
// to Persist or PersistChild. Pure data; the With* setters exist so call
// sites read as one expression.
type AppendEvent struct {
	EventType     string
	Payload       json.RawMessage
	RunID         string
	Actor         string
	CausedBySeq   *int64
	SchemaVersion int
}

// NewAppendEvent builds an AppendEvent with schema version 1.
func NewAppendEvent(eventType string, payload json.RawMessage) AppendEvent {
	return AppendEvent{EventType: eventType, Payload: payload, SchemaVersion: 1}
}

// WithRun sets the run id the event belongs to.
func (e AppendEvent) WithRun(runID string) AppendEvent {
	e.RunID = runID
	return e
}

// WithActor sets the actor tag recorded alongside the event.
func (e AppendEvent) WithActor(actor string) AppendEvent {
	e.Actor = actor
	return e
}

// WithCausedBy sets the secondary causal pointer for cross-tree causation,
// distinct from the dispatch-local parent link.
func (e AppendEvent) WithCausedBy(seq int64) AppendEvent {
	e.CausedBySeq = &seq
	return e
}

// WithSchemaVersion overrides the payload schema version.
func (e AppendEvent) WithSchemaVersion(v int) AppendEvent {
	e.SchemaVersion = v
	return e
}
