// Package main is the protocolqc command: it compares a subject's MRI series
// against one or more protocol templates.
//
//	protocolqc [flags] <template_path> <data_path>
//
// Exit codes: 0 for a unique protocol match, 1 for several matches, 2 for
// none and 3 for a malformed template or a run that could not start.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/protocolqc/protocolqc/internal/app"
	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/summary"
	"github.com/protocolqc/protocolqc/internal/tags"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := config.DefaultOptions()
	if err := opts.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return summary.ExitConfigError
	}

	fs := flag.NewFlagSet("protocolqc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: protocolqc [flags] <template_path> <data_path>")
		fs.PrintDefaults()
	}
	fs.Float64Var(&opts.MinMatchScore, "min_match_score", opts.MinMatchScore,
		"fractional score below which series are not considered and protocols are not listed")
	fs.BoolVar(&opts.FindFirst, "find_first", opts.FindFirst, "stop at the first complete protocol match")
	fs.StringVar(&opts.LogsDir, "logs_dir", opts.LogsDir, "directory for logs and tags files (default: working directory)")
	fs.StringVar(&opts.SubLabel, "sub_label", opts.SubLabel, "subject label used to name tags files")
	fs.StringVar(&opts.WhichTags, "which_tags", opts.WhichTags, "tags files to write: none, highest or all")
	fs.StringVar(&opts.DebugLevel, "debug_level", opts.DebugLevel, "log level: INFO or DEBUG")
	fs.StringVar(&opts.RedisAddr, "redis_addr", opts.RedisAddr, "publish evaluation events to this Redis host:port")
	fs.StringVar(&opts.RedisStream, "redis_stream", opts.RedisStream, "Redis stream receiving evaluation events")
	version := fs.Bool("version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return summary.ExitConfigError
	}
	if *version {
		fmt.Fprintf(stdout, "protocolqc: version %s\n", tags.Version)
		return 0
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return summary.ExitConfigError
	}
	opts.TemplatePath = fs.Arg(0)
	opts.DataPath = fs.Arg(1)

	code, err := app.Run(ctx, opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}
