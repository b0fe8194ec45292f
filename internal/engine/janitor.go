package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seantiz/pdf2zh-engine/internal/jobs"
)

// Janitor periodically evicts finished jobs from the registry once they are
// older than a TTL.
type Janitor struct {
	registry *jobs.Registry
	ttl      time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewJanitor schedules a sweep every interval. A zero ttl or interval yields
// a janitor that never runs.
func NewJanitor(reg *jobs.Registry, ttl, interval time.Duration, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		registry: reg,
		ttl:      ttl,
		logger:   logger,
		cron:     cron.New(),
	}
	if ttl <= 0 || interval <= 0 {
		return j, nil
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("schedule job sweep: %w", err)
	}
	return j, nil
}

// Start begins running scheduled sweeps in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep evicts expired jobs once and returns how many were removed.
func (j *Janitor) Sweep() int {
	removed := j.registry.Sweep(j.ttl)
	jobsRegistered.Set(float64(j.registry.Len()))
	if removed > 0 {
		j.logger.Info("evicted finished jobs", "count", removed, "ttl", j.ttl.String())
	}
	return removed
}
