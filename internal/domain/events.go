package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event emitted by the system.
type EventType string

const (
	// EventTypeProtocolEvaluated is emitted once per protocol template after
	// evaluation, whether it was scored, skipped or failed.
	EventTypeProtocolEvaluated EventType = "ProtocolEvaluated"
)

// subjectNamespace scopes name-based subject identifiers.
var subjectNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("protocolqc:subject"))

// SubjectID derives a stable identifier for a patient so events from
// repeated runs over the same subject correlate without exposing the
// raw patient identifier.
func SubjectID(patientID string) uuid.UUID {
	return uuid.NewSHA1(subjectNamespace, []byte(patientID))
}

// EventEnvelope wraps domain events with consistent metadata.
type EventEnvelope struct {
	// IdempotencyKey lets sinks drop events replayed by activity retries.
	IdempotencyKey string `json:"idempotency_key" validate:"required"`

	EventType EventType `json:"event_type" validate:"required"`

	// Version starts at 1 and increments when the payload changes shape.
	Version int `json:"version" validate:"required,min=1"`

	OccurredAt time.Time `json:"occurred_at" validate:"required"`

	// SubjectID is the name-based UUID of the scanned subject.
	SubjectID uuid.UUID `json:"subject_id" validate:"required"`

	// RunKey identifies the evaluation run: a workflow ID for worker runs
	// or a generated key for CLI runs.
	RunKey string `json:"run_key" validate:"required"`

	// ArtifactRefs lists files produced alongside the event, such as the
	// template log or tags file.
	ArtifactRefs []string `json:"artifact_refs,omitempty"`

	Payload json.RawMessage `json:"payload" validate:"required"`

	Producer string `json:"producer" validate:"required"`
}

// Validate checks if the event envelope meets all requirements.
func (e *EventEnvelope) Validate() error {
	return validate.Struct(e)
}

// AcquisitionOutcome is the per-acquisition part of a ProtocolEvaluated event.
type AcquisitionOutcome struct {
	Name       string      `json:"name"       validate:"required"`
	Status     MatchStatus `json:"status"     validate:"required"`
	Score      float64     `json:"score"`
	Incomplete bool        `json:"incomplete"`
}

// ProtocolEvaluatedPayload carries the verdict of one protocol template.
type ProtocolEvaluatedPayload struct {
	Template             string               `json:"template"              validate:"required"`
	State                EvaluationState      `json:"state"                 validate:"required,oneof=evaluated skipped failed"`
	Error                string               `json:"error,omitempty"`
	Score                float64              `json:"score"                 validate:"gte=0,lte=1"`
	MissingSeries        bool                 `json:"missing_series"`
	Incomplete           bool                 `json:"incomplete"`
	DuplicatesUnexpected bool                 `json:"duplicates_unexpected"`
	Ordering             OrderingStatus       `json:"ordering"`
	Pairing              string               `json:"pairing"`
	ExtraSeries          int                  `json:"extra_series"          validate:"min=0"`
	Acquisitions         []AcquisitionOutcome `json:"acquisitions"          validate:"dive"`
}

// Validate checks if the payload meets all requirements.
func (p *ProtocolEvaluatedPayload) Validate() error {
	return validate.Struct(p)
}

// NewProtocolEvaluatedPayload summarizes an evaluated protocol.
func NewProtocolEvaluatedPayload(p *ProtocolTemplate) ProtocolEvaluatedPayload {
	payload := ProtocolEvaluatedPayload{
		Template:             p.Name,
		State:                p.State,
		Error:                p.Error,
		Score:                p.Score,
		MissingSeries:        p.MissingSeries,
		Incomplete:           p.Incomplete,
		DuplicatesUnexpected: p.DuplicatesUnexpected,
		Ordering:             p.Ordering,
		Pairing:              p.Pairing.Tag(),
		ExtraSeries:          p.ExtraSeries,
	}
	for _, a := range p.Acquisitions {
		status := a.Status
		if status == "" {
			status = StatusUnknown
		}
		payload.Acquisitions = append(payload.Acquisitions, AcquisitionOutcome{
			Name:       a.Name,
			Status:     status,
			Score:      a.Score,
			Incomplete: a.Incomplete,
		})
	}
	return payload
}

// NewEventEnvelope creates a new EventEnvelope with required fields populated.
func NewEventEnvelope(
	eventType EventType,
	subjectID uuid.UUID,
	runKey string,
	payload json.RawMessage,
	producer string,
	artifactRefs []string,
) EventEnvelope {
	return EventEnvelope{
		EventType:    eventType,
		Version:      1,
		SubjectID:    subjectID,
		RunKey:       runKey,
		ArtifactRefs: artifactRefs,
		Payload:      payload,
		Producer:     producer,
		OccurredAt:   time.Now(),
	}
}

// GenerateIdempotencyKey creates a deterministic key for event deduplication:
// H(runKey || suffix).
func GenerateIdempotencyKey(runKey, eventSuffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(runKey + eventSuffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ProtocolEvaluatedIdempotencyKey keys one event per template per run.
func ProtocolEvaluatedIdempotencyKey(runKey, template string) string {
	return GenerateIdempotencyKey(runKey, ":evaluated:"+template)
}

// NewProtocolEvaluatedEvent creates a ProtocolEvaluated event envelope.
func NewProtocolEvaluatedEvent(
	runKey string,
	protocol *ProtocolTemplate,
	producer string,
	artifactRefs []string,
) (EventEnvelope, error) {
	payload := NewProtocolEvaluatedPayload(protocol)
	if err := payload.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid protocol evaluated payload: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope := NewEventEnvelope(
		EventTypeProtocolEvaluated,
		SubjectID(protocol.PatientID),
		runKey,
		payloadJSON,
		producer,
		artifactRefs,
	)
	envelope.IdempotencyKey = ProtocolEvaluatedIdempotencyKey(runKey, protocol.Name)

	if err := envelope.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid event envelope: %w", err)
	}
	return envelope, nil
}
