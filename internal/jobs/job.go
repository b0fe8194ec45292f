package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

var (
	// ErrEndOfStream is returned by Reader.Drain once the job is done and the
	// reader has consumed every event, including the terminal one.
	ErrEndOfStream = errors.New("end of event stream")

	// ErrNoEvent is returned by Reader.Drain when the wait elapsed without a
	// new event. Callers use it to probe their downstream connection.
	ErrNoEvent = errors.New("no event within wait")
)

// Job is the synchronized state of one translation job: an append-only event
// log, a done flag and the terminal result. It is safe for concurrent use.
//
// Only the job's worker appends. Once a terminal event has been appended the
// log is frozen and later appends are dropped.
type Job struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	events     []model.Event
	done       bool
	result     model.Result
	finishedAt time.Time
	// wake is closed and replaced on every append so that all blocked
	// readers observe the change.
	wake chan struct{}
}

func newJob(id string, now time.Time) *Job {
	return &Job{
		id:        id,
		createdAt: now,
		wake:      make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// CreatedAt returns when the job was registered.
func (j *Job) CreatedAt() time.Time {
	return j.createdAt
}

// Publish appends a non-terminal event. It reports false when the event was
// dropped because it is terminal or the job is already done.
func (j *Job) Publish(ev model.Event) bool {
	if ev.Terminal() {
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done {
		return false
	}
	j.appendLocked(ev)
	return true
}

// Complete marks the job successful: it appends the done event and stores res
// under the same lock. Only the first terminal call has any effect.
func (j *Job) Complete(res model.Result) bool {
	return j.finish(model.DoneEvent(), res)
}

// Fail marks the job failed: it appends an error event and stores the
// matching failure result. Only the first terminal call has any effect.
func (j *Job) Fail(message, detail string) bool {
	return j.finish(model.ErrorEvent(message, detail), model.FailureResult(message, detail))
}

func (j *Job) finish(ev model.Event, res model.Result) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done {
		return false
	}
	j.done = true
	j.result = res
	j.finishedAt = time.Now()
	j.appendLocked(ev)
	return true
}

func (j *Job) appendLocked(ev model.Event) {
	j.events = append(j.events, ev)
	close(j.wake)
	j.wake = make(chan struct{})
}

// Done reports whether the job has reached a terminal state.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}

// Result returns the terminal payload and whether the job is done. While the
// job is running the returned Result is the zero value.
func (j *Job) Result() (model.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.done
}

// Len returns the number of events appended so far.
func (j *Job) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

// Snapshot returns a copy of the events appended so far.
func (j *Job) Snapshot() []model.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.Event(nil), j.events...)
}

// finishedBefore reports whether the job is done and finished before t.
func (j *Job) finishedBefore(t time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done && j.finishedAt.Before(t)
}

// Reader returns a new cursor positioned at the first event of the job.
// Every reader observes the full log in append order.
func (j *Job) Reader() *Reader {
	return &Reader{job: j}
}

// Reader is a single consumer's position in a job's event log. A Reader is
// not safe for concurrent use; create one per consumer.
type Reader struct {
	job  *Job
	next int
}

// Drain returns the next unread event. When none is available it waits,
// without holding the job lock, until an event is appended, timeout elapses
// (ErrNoEvent) or ctx is done (ctx.Err()). Once the job is done and every
// event has been read it returns ErrEndOfStream. A timeout <= 0 waits
// without limit.
func (r *Reader) Drain(ctx context.Context, timeout time.Duration) (model.Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	j := r.job
	for {
		j.mu.Lock()
		if r.next < len(j.events) {
			ev := j.events[r.next]
			r.next++
			j.mu.Unlock()
			return ev, nil
		}
		if j.done {
			j.mu.Unlock()
			return model.Event{}, ErrEndOfStream
		}
		wake := j.wake
		j.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			return model.Event{}, ErrNoEvent
		case <-ctx.Done():
			return model.Event{}, ctx.Err()
		}
	}
}
