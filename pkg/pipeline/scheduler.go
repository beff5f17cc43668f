package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Validator is implemented by client.Executor. Validate returns a non-nil error
// only for fatal system errors; the scheduler stops dispatching on the first one.
type Validator interface {
	Validate(ctx context.Context, rec validation.Record, stop <-chan struct{}) (validation.Outcome, error)
}

// Config holds pipeline configuration.
type Config struct {
	// MaxBatchSize is the largest number of records per batch.
	MaxBatchSize int

	// Concurrency is the number of workers.
	// Recommendation: 10 workers against a single validation endpoint.
	Concurrency int

	// Parallel false forces a single worker regardless of Concurrency.
	Parallel bool

	// ProgressEvery logs a progress line every N records. 0 disables it.
	ProgressEvery int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:  1000,
		Concurrency:   10,
		Parallel:      true,
		ProgressEvery: 100,
	}
}

// Validate checks the configuration. Errors wrap validation.ErrConfiguration.
func (c Config) Validate() error {
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size must be >= 1 (got %d)", validation.ErrConfiguration, c.MaxBatchSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1 (got %d)", validation.ErrConfiguration, c.Concurrency)
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("%w: progress interval must be >= 0 (got %d)", validation.ErrConfiguration, c.ProgressEvery)
	}
	return nil
}

// Workers returns the effective worker count.
func (c Config) Workers() int {
	if !c.Parallel || c.Concurrency < 1 {
		return 1
	}
	return c.Concurrency
}

// Scheduler drives a bounded worker pool over batches of records.
type Scheduler struct {
	validator Validator
	config    Config
	logger    zerolog.Logger
}

// NewScheduler creates a new scheduler.
func NewScheduler(v Validator, config Config) *Scheduler {
	return &Scheduler{
		validator: v,
		config:    config,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

type job struct {
	slot   int
	batch  int
	record validation.Record
}

type jobResult struct {
	slot     int
	batch    int
	outcome  validation.Outcome
	err      error
	workerID int
}

// Process validates every record of every batch and aggregates the outcomes.
//
// On a fatal validator error or context cancellation, dispatching stops,
// in-flight records finish, and the remaining records are reported as
// NOT_ATTEMPTED. The partial result set is returned together with the error.
func (s *Scheduler) Process(ctx context.Context, batches []validation.Batch) (validation.ResultSet, error) {
	start := time.Now()

	records := validation.Flatten(batches)
	total := len(records)

	batchOf := make([]int, 0, total)
	remaining := make([]int, len(batches))
	for i, b := range batches {
		remaining[i] = b.Len()
		for range b.Records {
			batchOf = append(batchOf, i)
		}
	}

	outcomes := make([]validation.Outcome, total)
	done := make([]bool, total)

	workers := s.config.Workers()
	if workers > total {
		workers = total
	}

	s.logger.Info().
		Int("records", total).
		Int("batches", len(batches)).
		Int("workers", workers).
		Msg("Starting validation")

	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	jobs := make(chan job)
	results := make(chan jobResult)

	// Dispatcher
	go func() {
		defer close(jobs)
		for i, rec := range records {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			default:
			}

			select {
			case jobs <- job{slot: i, batch: batchOf[i], record: rec}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, jobs, results, stop, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var fatalErr error
	completed := 0
	for r := range results {
		outcomes[r.slot] = r.outcome
		done[r.slot] = true
		completed++
		outcomesTotal.WithLabelValues(string(r.outcome.Kind), r.outcome.Code()).Inc()

		if r.err != nil && fatalErr == nil {
			fatalErr = r.err
			halt()
			s.logger.Error().
				Err(r.err).
				Int("worker_id", r.workerID).
				Msg("Fatal error - stopping dispatch")
		}

		remaining[r.batch]--
		if remaining[r.batch] == 0 {
			batchesCompletedTotal.Inc()
			s.logger.Info().
				Int("batch", r.batch).
				Int("size", batches[r.batch].Len()).
				Msg("Batch complete")
		}

		if s.config.ProgressEvery > 0 && completed%s.config.ProgressEvery == 0 {
			s.logger.Info().
				Int("completed", completed).
				Int("total", total).
				Float64("progress_pct", float64(completed)/float64(total)*100).
				Msg("Validation progress")
		}
	}

	notAttempted := 0
	for i := range outcomes {
		if !done[i] {
			outcomes[i] = validation.NotAttempted(records[i])
			outcomesTotal.WithLabelValues(string(outcomes[i].Kind), outcomes[i].Code()).Inc()
			notAttempted++
		}
	}

	// Slots are in input order; caller-supplied indexes may repeat.
	rs := validation.Partition(outcomes)
	duration := time.Since(start)
	pipelineDurationSeconds.Observe(duration.Seconds())

	event := s.logger.Info()
	if fatalErr != nil || ctx.Err() != nil {
		event = s.logger.Warn()
	}
	event.
		Int("valid", rs.Summary.Valid).
		Int("invalid", rs.Summary.Invalid).
		Int("error", rs.Summary.Errored).
		Int("not_attempted", notAttempted).
		Dur("duration", duration).
		Msg("Validation finished")

	if fatalErr != nil {
		return rs, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return rs, err
	}
	return rs, nil
}

// worker validates records from the job channel until it is closed.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan job, results chan<- jobResult, stop <-chan struct{}, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for j := range jobs {
		recordsInflight.Inc()
		out, err := s.validator.Validate(ctx, j.record, stop)
		recordsInflight.Dec()

		results <- jobResult{
			slot:     j.slot,
			batch:    j.batch,
			outcome:  out,
			err:      err,
			workerID: workerID,
		}
		processed++
	}

	if processed > 0 {
		s.logger.Debug().
			Int("worker_id", workerID).
			Int("records_processed", processed).
			Msg("Worker completed")
	}
}
