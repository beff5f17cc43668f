// Package pipeline runs bulk account validation over a bounded worker pool.
//
// Records are split into batches, dispatched one at a time over an unbuffered
// job channel to a fixed number of workers, and collected by slot so the
// aggregated result is in input order no matter which worker finished first.
//
// Example usage:
//
//	executor, _ := client.NewExecutorFromConfig(client.DefaultConfig("http://localhost:8000"))
//	p, err := pipeline.New(pipeline.DefaultConfig(), executor)
//	if err != nil {
//		return err
//	}
//	run, err := p.Run(ctx, records)
//
// The scheduler:
//   - Runs Concurrency workers (default 10), or one when Parallel is off
//   - Stops dispatching on the first fatal error and drains in-flight work
//   - Reports never-dispatched records as NOT_ATTEMPTED
//   - Returns partial results together with the fatal error
package pipeline
