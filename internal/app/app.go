// Package app runs protocol QC from the command line: it loads the
// templates and the subject's series, evaluates every template, writes the
// summary and tags files and cleans up the per-template logs.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/dataset"
	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/evaluation"
	"github.com/protocolqc/protocolqc/internal/eventsink"
	"github.com/protocolqc/protocolqc/internal/logging"
	"github.com/protocolqc/protocolqc/internal/summary"
	"github.com/protocolqc/protocolqc/internal/tags"
	"github.com/protocolqc/protocolqc/internal/template"
	"github.com/protocolqc/protocolqc/pkg/activity"
	"github.com/protocolqc/protocolqc/pkg/events"
)

// Producer identifies events emitted by the command line tool.
const Producer = "protocolqc-cli"

// Runner runs protocol QC. Sink receives one event per evaluated template;
// when nil, a Redis sink is dialed if the options name one.
type Runner struct {
	Sink events.EventSink

	// NewRunKey identifies the run in published events.
	NewRunKey func() string
}

// Run is Runner.Run with the default event configuration.
func Run(ctx context.Context, opts config.Options, stdout io.Writer) (int, error) {
	return (&Runner{}).Run(ctx, opts, stdout)
}

// Run executes one protocol QC run and returns the process exit code. An
// error means the run could not start or its outputs could not be written.
func (r *Runner) Run(ctx context.Context, opts config.Options, stdout io.Writer) (int, error) {
	if err := opts.Validate(); err != nil {
		return summary.ExitConfigError, err
	}
	level, err := logging.ParseLevel(opts.DebugLevel)
	if err != nil {
		return summary.ExitConfigError, err
	}
	if stdout == nil {
		stdout = io.Discard
	}

	logs, err := logging.NewManager(opts.LogsDir, level, stdout)
	if err != nil {
		return summary.ExitConfigError, err
	}
	defer logs.Close()

	logger, err := logs.Summary()
	if err != nil {
		return summary.ExitConfigError, err
	}

	sources, err := template.Load(opts.TemplatePath)
	if err != nil {
		return summary.ExitConfigError, fmt.Errorf("load templates: %w", err)
	}
	series, err := dataset.NewLoader(logger).Load(opts.DataPath)
	if err != nil {
		return summary.ExitConfigError, fmt.Errorf("load data: %w", err)
	}
	logger.Info(fmt.Sprintf("%d template(s) and %d series loaded", len(sources), len(series)),
		"patient_id", dataset.PatientID(series))

	sink, closeSink, err := r.sink(ctx, opts, logger)
	if err != nil {
		return summary.ExitConfigError, err
	}
	defer closeSink()

	protocols, err := r.evaluate(ctx, opts, sources, series, logs, sink)
	if err != nil {
		return summary.ExitConfigError, err
	}

	for _, p := range protocols {
		if p.Evaluated() && p.Score < opts.MinMatchScore {
			if err := logs.Discard(p.Name); err != nil {
				logger.Warn("log file not removed", "protocol", p.Name, "error", err)
			}
		}
	}

	report := summary.Build(protocols, opts.MinMatchScore)
	report.Log(logger)

	var written []tags.Artifact
	if which := tags.Which(opts.WhichTags); which != tags.WhichNone {
		written, err = tags.NewGenerator(logger).WithMinMatchScore(opts.MinMatchScore).Generate(protocols, series, which, opts.SubLabel, logs.Dir())
		if err != nil {
			return report.ExitCode, fmt.Errorf("write tags: %w", err)
		}
	}

	if report.ExitCode == summary.ExitUniqueMatch && len(written) == 1 {
		if err := logs.KeepOnly(written[0].Protocol); err != nil {
			logger.Warn("log files not cleaned up", "error", err)
		}
	}
	if report.ExitCode == summary.ExitUniqueMatch {
		fmt.Fprintln(stdout, report.Matched[0].Protocol.Name)
	}
	return report.ExitCode, nil
}

// evaluate runs every template in order. With FindFirst it stops after
// the first complete match.
func (r *Runner) evaluate(
	ctx context.Context,
	opts config.Options,
	sources []template.Source,
	series []domain.DataSeries,
	logs *logging.Manager,
	sink events.EventSink,
) ([]*domain.ProtocolTemplate, error) {
	base := activity.NewBaseActivities(sink)
	emitter := evaluation.NewEventEmitter(base, Producer)
	wfCtx := base.GetWorkflowContext(ctx)
	runKey := r.runKey()

	protocols := make([]*domain.ProtocolTemplate, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger, err := logs.Template(src.Name)
		if err != nil {
			return nil, err
		}

		p, err := evaluation.Evaluate(src, series, opts.MinMatchScore, logger)
		if err != nil && !domain.IsTemplateError(err) {
			return nil, fmt.Errorf("evaluate %s: %w", src.Name, err)
		}
		emitter.EmitProtocolEvaluated(ctx, runKey, p, wfCtx, []string{logs.Path(src.Name)})
		protocols = append(protocols, p)

		if opts.FindFirst && p.Evaluated() && p.Score == 1 {
			break
		}
	}
	return protocols, nil
}

func (r *Runner) runKey() string {
	if r.NewRunKey != nil {
		return r.NewRunKey()
	}
	return uuid.NewString()
}

func (r *Runner) sink(ctx context.Context, opts config.Options, logger *slog.Logger) (events.EventSink, func(), error) {
	if r.Sink != nil {
		return r.Sink, func() {}, nil
	}
	if opts.RedisAddr == "" {
		return events.NewNoOpEventSink(), func() {}, nil
	}
	sink, err := eventsink.Dial(ctx, opts.RedisAddr, opts.RedisStream)
	if err != nil {
		return nil, nil, fmt.Errorf("connect event sink: %w", err)
	}
	logger.Debug("publishing events", "addr", opts.RedisAddr, "stream", opts.RedisStream)
	return sink, func() {
		if err := sink.Close(); err != nil {
			logger.Warn("event sink not closed cleanly", "error", err)
		}
	}, nil
}
