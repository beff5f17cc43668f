package pipeline

import (
	"context"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Run is the result of one pipeline execution.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Batches   int
	Results   validation.ResultSet
}

// Pipeline splits records into batches and validates them with a Scheduler.
type Pipeline struct {
	scheduler *Scheduler
	config    Config
	logger    zerolog.Logger
}

// New creates a pipeline. Invalid configuration is rejected before any work
// starts with an error wrapping validation.ErrConfiguration.
func New(cfg Config, v Validator) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Pipeline{
		scheduler: NewScheduler(v, cfg),
		config:    cfg,
		logger:    log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run validates records and returns the aggregated results. Records are
// expected to carry their input position in Index.
//
// The returned Run is always populated, even together with a fatal error.
func (p *Pipeline) Run(ctx context.Context, records []validation.Record) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := p.logger.With().Str("run_id", run.ID).Logger()

	batches, err := validation.Split(records, p.config.MaxBatchSize)
	if err != nil {
		return run, err
	}
	run.Batches = len(batches)

	logger.Info().
		Int("records", len(records)).
		Int("batches", len(batches)).
		Int("max_batch_size", p.config.MaxBatchSize).
		Msg("Pipeline run started")

	rs, err := p.scheduler.Process(ctx, batches)
	run.Results = rs
	run.Duration = time.Since(run.StartedAt)

	if err != nil {
		logger.Error().
			Err(err).
			Int("accounted", rs.Len()).
			Msg("Pipeline run aborted")
		return run, err
	}

	logger.Info().
		Int("total", rs.Summary.Total).
		Int("valid", rs.Summary.Valid).
		Int("invalid", rs.Summary.Invalid).
		Int("error", rs.Summary.Errored).
		Dur("duration", run.Duration).
		Msg("Pipeline run complete")

	return run, nil
}
