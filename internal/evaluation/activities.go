package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.temporal.io/sdk/temporal"

	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/template"
	pkgactivity "github.com/protocolqc/protocolqc/pkg/activity"
)

// Application error types returned to workflows.
const (
	ErrTypeValidation      = "Validation"
	ErrTypeInvalidTemplate = "InvalidTemplate"
)

// Producer identifies events emitted by the worker.
const Producer = "protocolqc-worker"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is the input of EvaluateProtocol.
type Request struct {
	RunKey        string              `json:"run_key"         validate:"required"`
	Template      template.Source     `json:"template"`
	Series        []domain.DataSeries `json:"series"          validate:"required,min=1"`
	MinMatchScore float64             `json:"min_match_score" validate:"gte=0,lte=1"`
}

// Validate checks the request.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Template.Name == "" || len(r.Template.Data) == 0 {
		return fmt.Errorf("template source requires a name and data")
	}
	return nil
}

// Activities holds the protocol evaluation activities.
type Activities struct {
	pkgactivity.BaseActivities
	events *EventEmitter
	logger *slog.Logger
}

// NewActivities creates the activities. Engine progress is logged to logger.
func NewActivities(base pkgactivity.BaseActivities, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default().With("component", "evaluation")
	}
	return &Activities{
		BaseActivities: base,
		events:         NewEventEmitter(base, Producer),
		logger:         logger,
	}
}

// EvaluateProtocol builds and evaluates one template. A malformed template
// fails with a non-retryable InvalidTemplate error; the event describing the
// failure is still emitted.
func (a *Activities) EvaluateProtocol(ctx context.Context, req Request) (*domain.ProtocolTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid evaluation request", ErrTypeValidation, err)
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.RecordHeartbeat(ctx, req.Template.Name)
	logger := a.logger.With("template", req.Template.Name, "workflow_id", wfCtx.WorkflowID)

	p, err := Evaluate(req.Template, req.Series, req.MinMatchScore, logger)
	a.events.EmitProtocolEvaluated(ctx, req.RunKey, p, wfCtx, nil)
	if err != nil {
		if domain.IsTemplateError(err) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidTemplate, err)
		}
		return nil, fmt.Errorf("evaluate %s: %w", req.Template.Name, err)
	}

	pkgactivity.SafeLog(ctx, "protocol evaluated",
		"template", p.Name,
		"state", string(p.State),
		"score", p.Score)
	return p, nil
}
