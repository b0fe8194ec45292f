package jobs

import (
	"sync"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// Registry maps job IDs to their state. It is safe for concurrent use.
//
// Jobs are never removed on their own; Sweep evicts jobs that finished longer
// than a TTL ago.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create registers a new running job under a fresh ID.
func (r *Registry) Create() (string, *Job) {
	id := model.NewID()
	job := newJob(id, time.Now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = job
	return id, job
}

// Get returns the job with the given ID.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Stats is a point-in-time count of registered jobs.
type Stats struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Finished int `json:"finished"`
}

// Stats counts registered jobs by state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{Total: len(r.jobs)}
	for _, job := range r.jobs {
		if job.Done() {
			st.Finished++
		} else {
			st.Running++
		}
	}
	return st
}

// Sweep removes jobs that finished more than ttl ago and returns how many
// were removed. Running jobs are never removed. A ttl <= 0 is a no-op.
func (r *Registry) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.finishedBefore(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
