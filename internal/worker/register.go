// Package worker exposes helpers to register the protocol QC workflow and
// its activities with a Temporal worker.
package worker

import (
	"log/slog"

	sdkworker "go.temporal.io/sdk/worker"

	"github.com/protocolqc/protocolqc/internal/evaluation"
	"github.com/protocolqc/protocolqc/internal/workflow"
	"github.com/protocolqc/protocolqc/pkg/activity"
	"github.com/protocolqc/protocolqc/pkg/events"
)

// RegisterAll registers the workflow and all activities with the Temporal
// worker. It must be called once during worker initialization before the
// worker starts. A nil sink disables event publication.
func RegisterAll(w sdkworker.Worker, sink events.EventSink, logger *slog.Logger) {
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := activity.NewBaseActivities(sink)

	evaluationActivities := evaluation.NewActivities(base, logger)

	w.RegisterWorkflow(workflow.ProtocolQCWorkflow)
	w.RegisterActivity(evaluationActivities.EvaluateProtocol)
}
