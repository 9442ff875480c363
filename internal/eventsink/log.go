package eventsink

import (
	"context"
	"log/slog"

	"github.com/protocolqc/protocolqc/pkg/events"
)

// LogSink writes events to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging events at INFO.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default().With("component", "eventsink")
	}
	return &LogSink{logger: logger}
}

// Append implements events.EventSink.
func (s *LogSink) Append(ctx context.Context, e events.Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"id", e.ID,
		"subject_id", e.SubjectID,
		"run_key", e.RunKey,
		"payload", string(e.Payload),
	)
	return nil
}
