// Package events provides the generic event envelope and sink interface used
// to publish protocol QC results to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope wraps a domain event with routing and deduplication metadata.
type Envelope struct {
	// ID uniquely identifies the event. Producers derive it from the
	// idempotency key so retried emissions share an ID.
	ID string `json:"id"`

	// Type routes the event, e.g. "ProtocolEvaluated".
	Type string `json:"type"`

	// Source names the emitting component.
	Source string `json:"source"`

	// Version is the payload schema version in "major.minor.patch" form.
	Version string `json:"version"`

	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey lets sinks drop duplicates.
	IdempotencyKey string `json:"idempotency_key"`

	// SubjectID identifies the scanned subject without exposing its
	// patient identifier.
	SubjectID string `json:"subject_id"`

	// RunKey groups the events of one evaluation run.
	RunKey string `json:"run_key"`

	// WorkflowID and RunID identify the Temporal execution, when there is one.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	// ArtifactRefs lists files produced alongside the event.
	ArtifactRefs []string `json:"artifact_refs,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// EventSink receives events.
//
// Append should treat a repeated idempotency key as a no-op and return
// quickly. Callers never fail their primary operation because of a sink
// error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a sink for runs with event publication disabled.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}
