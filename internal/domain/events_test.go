package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope_Validate(t *testing.T) {
	valid := func() EventEnvelope {
		return EventEnvelope{
			IdempotencyKey: "key",
			EventType:      EventTypeProtocolEvaluated,
			Version:        1,
			OccurredAt:     time.Now(),
			SubjectID:      uuid.New(),
			RunKey:         "run-1",
			Payload:        json.RawMessage(`{}`),
			Producer:       "test",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*EventEnvelope)
		wantErr string
	}{
		{name: "valid", mutate: func(*EventEnvelope) {}},
		{name: "missing idempotency key", mutate: func(e *EventEnvelope) { e.IdempotencyKey = "" }, wantErr: "IdempotencyKey"},
		{name: "zero version", mutate: func(e *EventEnvelope) { e.Version = 0 }, wantErr: "Version"},
		{name: "nil subject", mutate: func(e *EventEnvelope) { e.SubjectID = uuid.Nil }, wantErr: "SubjectID"},
		{name: "missing run key", mutate: func(e *EventEnvelope) { e.RunKey = "" }, wantErr: "RunKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := valid()
			tt.mutate(&env)
			err := env.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubjectID_Deterministic(t *testing.T) {
	assert.Equal(t, SubjectID("P001"), SubjectID("P001"))
	assert.NotEqual(t, SubjectID("P001"), SubjectID("P002"))
	assert.Equal(t, uuid.Version(5), SubjectID("P001").Version())
}

func TestProtocolEvaluatedIdempotencyKey(t *testing.T) {
	k1 := ProtocolEvaluatedIdempotencyKey("run", "a.json")
	assert.Len(t, k1, 64)
	assert.Equal(t, k1, ProtocolEvaluatedIdempotencyKey("run", "a.json"))
	assert.NotEqual(t, k1, ProtocolEvaluatedIdempotencyKey("run", "b.json"))
}

func TestNewProtocolEvaluatedEvent(t *testing.T) {
	p := testProtocol()
	p.PatientID = "P001"
	p.Reset()
	p.State = StateEvaluated
	p.Score = 0.5
	p.Acquisitions[0].Status = StatusMatch
	p.Acquisitions[1].Status = StatusNoMatch

	env, err := NewProtocolEvaluatedEvent("run-1", p, "test", []string{"logs/study.log"})
	require.NoError(t, err)

	assert.Equal(t, EventTypeProtocolEvaluated, env.EventType)
	assert.Equal(t, SubjectID("P001"), env.SubjectID)
	assert.Equal(t, ProtocolEvaluatedIdempotencyKey("run-1", "study"), env.IdempotencyKey)

	var payload ProtocolEvaluatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "study", payload.Template)
	assert.InDelta(t, 0.5, payload.Score, 1e-9)
	assert.Equal(t, "unchecked", payload.Pairing)
	require.Len(t, payload.Acquisitions, 2)
	assert.Equal(t, StatusNoMatch, payload.Acquisitions[1].Status)
}

func TestNewProtocolEvaluatedEvent_PendingRejected(t *testing.T) {
	p := testProtocol()
	p.Reset()

	_, err := NewProtocolEvaluatedEvent("run-1", p, "test", nil)
	assert.Error(t, err)
}
