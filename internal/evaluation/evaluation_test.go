package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/eventsink"
	pkgactivity "github.com/protocolqc/protocolqc/pkg/activity"
)

func TestEvaluate(t *testing.T) {
	p, err := Evaluate(source("site.json", siteTemplate), subjectSeries(), 0.8, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, domain.StateEvaluated, p.State)
	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.Equal(t, "SUB01", p.PatientID)
	assert.Equal(t, domain.OrderingCorrect, p.Ordering)
}

func TestEvaluate_BrokenTemplate(t *testing.T) {
	p, err := Evaluate(source("broken.json", brokenTemplate), subjectSeries(), 0.8, quietLogger())

	require.Error(t, err)
	assert.True(t, domain.IsTemplateError(err))
	require.NotNil(t, p)
	assert.Equal(t, domain.StateFailed, p.State)
	assert.Equal(t, "broken.json", p.Name)
	assert.Equal(t, "SUB01", p.PatientID)
	assert.NotEmpty(t, p.Error)
}

func newTestActivities(sink *eventsink.MemorySink) *Activities {
	return NewActivities(pkgactivity.NewBaseActivities(sink), quietLogger())
}

func TestActivities_EvaluateProtocol(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}

	t.Run("evaluates and emits", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		sink := eventsink.NewMemorySink()
		acts := newTestActivities(sink)
		env.RegisterActivity(acts.EvaluateProtocol)

		val, err := env.ExecuteActivity(acts.EvaluateProtocol, Request{
			RunKey:        "run-1",
			Template:      source("site.json", siteTemplate),
			Series:        subjectSeries(),
			MinMatchScore: 0.8,
		})
		require.NoError(t, err)

		var p *domain.ProtocolTemplate
		require.NoError(t, val.Get(&p))
		assert.Equal(t, domain.StateEvaluated, p.State)
		assert.InDelta(t, 1.0, p.Score, 1e-9)
		require.Len(t, p.Acquisitions, 2)
		assert.Equal(t, domain.StatusMatch, p.Acquisitions[0].Status)

		emitted := sink.Events()
		require.Len(t, emitted, 1)
		assert.Equal(t, string(domain.EventTypeProtocolEvaluated), emitted[0].Type)
		assert.Equal(t, domain.ProtocolEvaluatedIdempotencyKey("run-1", "site.json"), emitted[0].IdempotencyKey)
		assert.Equal(t, domain.SubjectID("SUB01").String(), emitted[0].SubjectID)
		assert.Equal(t, "1.0.0", emitted[0].Version)

		var payload domain.ProtocolEvaluatedPayload
		require.NoError(t, json.Unmarshal(emitted[0].Payload, &payload))
		assert.Equal(t, domain.StateEvaluated, payload.State)
	})

	t.Run("malformed template is not retryable", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		sink := eventsink.NewMemorySink()
		acts := newTestActivities(sink)
		env.RegisterActivity(acts.EvaluateProtocol)

		_, err := env.ExecuteActivity(acts.EvaluateProtocol, Request{
			RunKey:        "run-1",
			Template:      source("broken.json", brokenTemplate),
			Series:        subjectSeries(),
			MinMatchScore: 0.8,
		})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrTypeInvalidTemplate, appErr.Type())
		assert.True(t, appErr.NonRetryable())

		emitted := sink.Events()
		require.Len(t, emitted, 1, "failures are still published")
		var payload domain.ProtocolEvaluatedPayload
		require.NoError(t, json.Unmarshal(emitted[0].Payload, &payload))
		assert.Equal(t, domain.StateFailed, payload.State)
	})

	t.Run("invalid request", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		acts := newTestActivities(eventsink.NewMemorySink())
		env.RegisterActivity(acts.EvaluateProtocol)

		_, err := env.ExecuteActivity(acts.EvaluateProtocol, Request{RunKey: "run-1"})

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrTypeValidation, appErr.Type())
	})
}

func TestEventEmitter_PendingNotPublished(t *testing.T) {
	sink := eventsink.NewMemorySink()
	base := pkgactivity.NewBaseActivities(sink)
	emitter := NewEventEmitter(base, "test")

	p := &domain.ProtocolTemplate{Name: "site.json"}
	p.Reset()
	emitter.EmitProtocolEvaluated(t.Context(), "run-1", p, base.GetWorkflowContext(t.Context()), nil)

	assert.Empty(t, sink.Events())
}
