// Command account-validator validates a file of bank accounts against the
// account validation service and writes the reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/Sternrassler/account-validator/internal/config"
	"github.com/Sternrassler/account-validator/internal/fileio"
	"github.com/Sternrassler/account-validator/pkg/client"
	"github.com/Sternrassler/account-validator/pkg/logging"
	"github.com/Sternrassler/account-validator/pkg/metrics"
	"github.com/Sternrassler/account-validator/pkg/pipeline"
	"github.com/Sternrassler/account-validator/pkg/validation"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options holds flags that have no environment counterpart.
type options struct {
	input string
}

// run parses args, validates the input file and writes reports. It returns the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load configuration: %v\n", err)
		return exitUsage
	}

	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return exitUsage
	}

	cfg.Log.Output = stderr
	_, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "setup logging: %v\n", err)
		return exitUsage
	}
	defer closer.Close()

	logger := logging.NewLogger("main")

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr)
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Failed to start metrics server")
			return exitFailed
		}
		metricsCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	logger.Info().
		Str("input", opts.input).
		Str("api_url", cfg.Client.BaseURL).
		Int("max_batch_size", cfg.Pipeline.MaxBatchSize).
		Int("workers", cfg.Pipeline.Workers()).
		Int("max_retries", cfg.Client.MaxRetries).
		Dur("request_timeout", cfg.Client.RequestTimeout).
		Str("output_dir", cfg.Output.Dir).
		Str("output_format", cfg.Output.Format).
		Msg("Starting account validation")

	records, err := fileio.Parse(opts.input)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read input")
		return exitFailed
	}
	if len(records) == 0 {
		logger.Warn().Msg("Input contains no records")
	}

	executor, err := client.NewExecutorFromConfig(cfg.Client)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create client")
		return exitUsage
	}

	p, err := pipeline.New(cfg.Pipeline, executor)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create pipeline")
		return exitUsage
	}

	result, runErr := p.Run(ctx, records)

	// Partial results are reported as well.
	files, err := fileio.WriteReports(cfg.Output.Dir, cfg.Output.Format, result.ID, result.Results)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write reports")
		return exitFailed
	}

	printSummary(stdout, result, files)

	if runErr != nil {
		logger.Error().Err(runErr).Str("run_id", result.ID).Msg("Validation run did not complete")
		if errors.Is(runErr, validation.ErrConfiguration) {
			return exitUsage
		}
		return exitFailed
	}
	return exitOK
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("account-validator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: account-validator -input FILE [flags]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.input, "input", "", "input file (.csv, .json, .xml, .xlsx)")
	outputDir := fs.String("output-dir", cfg.Output.Dir, "directory for reports")
	format := fs.String("format", cfg.Output.Format, "report format: csv, json or xml")
	batchSize := fs.Int("batch-size", cfg.Pipeline.MaxBatchSize, "maximum records per batch")
	workers := fs.Int("workers", cfg.Pipeline.Concurrency, "number of concurrent workers")
	sequential := fs.Bool("sequential", !cfg.Pipeline.Parallel, "validate with a single worker")
	apiURL := fs.String("api-url", cfg.Client.BaseURL, "validation service base URL")
	apiKey := fs.String("api-key", "", "API key (fetched from the service when empty)")
	timeout := fs.Duration("timeout", cfg.Client.RequestTimeout, "per-request timeout")
	retries := fs.Int("max-retries", cfg.Client.MaxRetries, "retries after the first attempt")
	logLevel := fs.String("log-level", string(cfg.Log.Level), "debug, info, warn or error")
	metricsAddr := fs.String("metrics-addr", cfg.Metrics.Addr, "serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" && fs.NArg() > 0 {
		opts.input = fs.Arg(0)
	}
	if opts.input == "" {
		fmt.Fprintln(stderr, "an input file is required")
		fs.Usage()
		return opts, errors.New("missing input")
	}

	cfg.Output.Dir = *outputDir
	cfg.Output.Format = *format
	cfg.Pipeline.MaxBatchSize = *batchSize
	cfg.Pipeline.Concurrency = *workers
	cfg.Pipeline.Parallel = !*sequential
	cfg.Client.BaseURL = *apiURL
	if *apiKey != "" {
		cfg.Client.APIKey = *apiKey
	}
	cfg.Client.RequestTimeout = *timeout
	cfg.Client.MaxRetries = *retries
	cfg.Log.Level = logging.LogLevel(*logLevel)
	cfg.Metrics.Addr = *metricsAddr

	return opts, nil
}

func printSummary(w io.Writer, r *pipeline.Run, files map[string]string) {
	s := r.Results.Summary
	fmt.Fprintf(w, "Run %s: %d records in %d batches (%s)\n", r.ID, s.Total, r.Batches, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  valid:   %d (%.1f%%)\n", s.Valid, s.ValidPercent)
	fmt.Fprintf(w, "  invalid: %d (%.1f%%)\n", s.Invalid, s.InvalidPercent)
	fmt.Fprintf(w, "  error:   %d (%.1f%%)\n", s.Errored, s.ErrorPercent)

	if len(s.Codes) > 0 {
		codes := make([]string, 0, len(s.Codes))
		for c := range s.Codes {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		fmt.Fprintln(w, "Codes:")
		for _, c := range codes {
			fmt.Fprintf(w, "  %-22s %d\n", c, s.Codes[c])
		}
	}

	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Reports:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-17s %s\n", k, files[k])
	}
}
