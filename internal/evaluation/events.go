package evaluation

import (
	"context"
	"fmt"

	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/pkg/activity"
	"github.com/protocolqc/protocolqc/pkg/events"
)

// EventEmitter publishes ProtocolEvaluated events through the base
// activity infrastructure. Emission is best-effort.
type EventEmitter struct {
	base     activity.BaseActivities
	producer string
}

// NewEventEmitter creates an emitter identifying itself as producer.
func NewEventEmitter(base activity.BaseActivities, producer string) *EventEmitter {
	return &EventEmitter{base: base, producer: producer}
}

// EmitProtocolEvaluated publishes the outcome of p. Pending protocols are
// not published.
func (e *EventEmitter) EmitProtocolEvaluated(
	ctx context.Context,
	runKey string,
	p *domain.ProtocolTemplate,
	wfCtx activity.WorkflowContext,
	artifactRefs []string,
) {
	domainEvent, err := domain.NewProtocolEvaluatedEvent(runKey, p, e.producer, artifactRefs)
	if err != nil {
		activity.SafeLogError(ctx, "failed to create ProtocolEvaluated event",
			"template", p.Name,
			"error", err)
		return
	}
	e.base.EmitEventSafe(ctx, toEnvelope(domainEvent, wfCtx), string(domain.EventTypeProtocolEvaluated))
}

// toEnvelope maps a domain event onto the generic envelope. The ID reuses
// the idempotency key so retried emissions are recognizable downstream.
func toEnvelope(d domain.EventEnvelope, wfCtx activity.WorkflowContext) events.Envelope {
	return events.Envelope{
		ID:             d.IdempotencyKey,
		Type:           string(d.EventType),
		Source:         d.Producer,
		Version:        fmt.Sprintf("%d.0.0", d.Version),
		Timestamp:      d.OccurredAt,
		IdempotencyKey: d.IdempotencyKey,
		SubjectID:      d.SubjectID.String(),
		RunKey:         d.RunKey,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		ArtifactRefs:   d.ArtifactRefs,
		Payload:        d.Payload,
	}
}
