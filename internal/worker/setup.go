package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/eventsink"
	"github.com/protocolqc/protocolqc/pkg/events"
)

// InitializeEventSink creates the sink activities publish to. Events go to
// a Redis stream when an address is configured and to the log otherwise.
// The returned close function releases the sink's connections.
func InitializeEventSink(
	ctx context.Context,
	redisAddr, stream string,
	logger *slog.Logger,
) (events.EventSink, func() error, error) {
	if logger == nil {
		logger = slog.Default().With("component", "worker")
	}
	if redisAddr == "" {
		return eventsink.NewLogSink(logger), func() error { return nil }, nil
	}

	sink, err := eventsink.Dial(ctx, redisAddr, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize event sink: %w", err)
	}
	logger.Info("publishing events to redis", "addr", redisAddr, "stream", stream)
	return sink, sink.Close, nil
}

// InitializeWorkerEventSink is InitializeEventSink for worker options.
func InitializeWorkerEventSink(
	ctx context.Context,
	opts config.WorkerOptions,
	logger *slog.Logger,
) (events.EventSink, func() error, error) {
	return InitializeEventSink(ctx, opts.RedisAddr, opts.RedisStream, logger)
}
