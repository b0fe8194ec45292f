// Package engine provides the asynchronous translation job worker.
// It runs each job on its own goroutine in a private working directory,
// resolves the translation engine via the service registry, normalizes the
// engine's raw events into progress events, and records every job outcome
// in the job state, the history store and the metrics.
package engine
