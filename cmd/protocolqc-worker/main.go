// Package main runs a Temporal worker serving the protocol QC workflow.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/logging"
	"github.com/protocolqc/protocolqc/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := config.DefaultWorkerOptions()
	if err := opts.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(opts.DebugLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(client.Options{
		HostPort:  opts.TemporalHostPort,
		Namespace: opts.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Temporal at %s: %w", opts.TemporalHostPort, err)
	}
	defer c.Close()

	sink, closeSink, err := worker.InitializeWorkerEventSink(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("event sink not closed cleanly", "error", err)
		}
	}()

	w := sdkworker.New(c, opts.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, sink, logger.With("component", "evaluation"))

	logger.Info("worker starting", "task_queue", opts.TaskQueue, "namespace", opts.Namespace)
	interrupt := make(chan any)
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	if err := w.Run(interrupt); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
