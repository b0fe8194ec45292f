// Package jobs holds the in-memory job registry and the per-job event log.
//
// Each job owns an independent lock, so unrelated jobs never contend. Readers
// follow a job through a cursor and are woken on every append; events are
// delivered in exactly the order they were appended, ending with the single
// terminal event (done or error).
package jobs
