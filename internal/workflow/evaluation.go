package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/protocolqc/protocolqc/internal/dataset"
	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/evaluation"
	"github.com/protocolqc/protocolqc/internal/summary"
	"github.com/protocolqc/protocolqc/internal/template"
)

const (
	activityTimeout  = 2 * time.Minute
	heartbeatTimeout = 30 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is the input of ProtocolQCWorkflow.
type Request struct {
	Templates     []template.Source   `json:"templates"       validate:"required,min=1"`
	Series        []domain.DataSeries `json:"series"          validate:"required,min=1"`
	MinMatchScore float64             `json:"min_match_score" validate:"gte=0,lte=1"`
	FindFirst     bool                `json:"find_first"`
}

// Validate checks the request.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// Result is the outcome of a run.
type Result struct {
	Protocols []*domain.ProtocolTemplate `json:"protocols"`
	Matched   []string                   `json:"matched"`
	ExitCode  int                        `json:"exit_code"`
}

// ProtocolQCWorkflow evaluates every template in req and ranks the results.
// Templates that fail to build are reported in the failed state and make
// the run exit with summary.ExitConfigError.
func ProtocolQCWorkflow(ctx workflow.Context, req Request) (*Result, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "protocolqc.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid protocol QC request",
			evaluation.ErrTypeValidation,
			err,
		)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{evaluation.ErrTypeValidation, evaluation.ErrTypeInvalidTemplate},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	runKey := workflow.GetInfo(ctx).WorkflowExecution.ID
	patientID := dataset.PatientID(req.Series)

	requests := make([]evaluation.Request, len(req.Templates))
	for i, src := range req.Templates {
		requests[i] = evaluation.Request{
			RunKey:        runKey,
			Template:      src,
			Series:        req.Series,
			MinMatchScore: req.MinMatchScore,
		}
	}

	var (
		protocols []*domain.ProtocolTemplate
		err       error
	)
	if req.FindFirst {
		protocols, err = evaluateInOrder(ctx, requests, patientID)
	} else {
		protocols, err = evaluateAll(ctx, requests, patientID)
	}
	if err != nil {
		return nil, err
	}

	report := summary.Build(protocols, req.MinMatchScore)
	result := &Result{Protocols: protocols, ExitCode: report.ExitCode}
	for _, e := range report.Matched {
		result.Matched = append(result.Matched, e.Protocol.Name)
	}

	logger.Info("protocol QC completed",
		"templates", len(req.Templates),
		"evaluated", len(protocols),
		"exit_code", result.ExitCode)
	return result, nil
}

func evaluateAll(ctx workflow.Context, requests []evaluation.Request, patientID string) ([]*domain.ProtocolTemplate, error) {
	var acts *evaluation.Activities

	futures := make([]workflow.Future, len(requests))
	for i, r := range requests {
		futures[i] = workflow.ExecuteActivity(ctx, acts.EvaluateProtocol, r)
	}

	protocols := make([]*domain.ProtocolTemplate, 0, len(requests))
	for i, f := range futures {
		p, err := awaitProtocol(ctx, f, requests[i].Template.Name, patientID)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}

// evaluateInOrder stops after the first protocol that matches completely.
func evaluateInOrder(ctx workflow.Context, requests []evaluation.Request, patientID string) ([]*domain.ProtocolTemplate, error) {
	var acts *evaluation.Activities

	protocols := make([]*domain.ProtocolTemplate, 0, len(requests))
	for _, r := range requests {
		f := workflow.ExecuteActivity(ctx, acts.EvaluateProtocol, r)
		p, err := awaitProtocol(ctx, f, r.Template.Name, patientID)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
		if p.Evaluated() && p.Score == 1 {
			workflow.GetLogger(ctx).Info("stopping at first complete match", "protocol", p.Name)
			break
		}
	}
	return protocols, nil
}

// awaitProtocol resolves one activity. A malformed template becomes a
// protocol in the failed state; any other error fails the workflow.
func awaitProtocol(ctx workflow.Context, f workflow.Future, name, patientID string) (*domain.ProtocolTemplate, error) {
	var p *domain.ProtocolTemplate
	err := f.Get(ctx, &p)
	if err == nil {
		return p, nil
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == evaluation.ErrTypeInvalidTemplate {
		workflow.GetLogger(ctx).Error("protocol template is malformed", "protocol", name, "error", appErr.Error())
		return &domain.ProtocolTemplate{
			Name:      name,
			PatientID: patientID,
			State:     domain.StateFailed,
			Error:     appErr.Error(),
		}, nil
	}
	return nil, fmt.Errorf("evaluate %s: %w", name, err)
}
