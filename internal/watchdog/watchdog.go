// Package watchdog terminates the server when the process that launched it
// goes away.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultInterval is how often the parent is probed.
const DefaultInterval = time.Second

// ErrParentGone is returned by Run when the supervised parent has exited or
// this process has been reparented to init.
var ErrParentGone = errors.New("parent process gone")

// Watchdog polls the liveness of a parent process.
type Watchdog struct {
	ppid     int
	interval time.Duration
	logger   *slog.Logger

	// alive reports whether pid still exists. Errors other than "no such
	// process" count as alive.
	alive func(pid int) bool
	// parent returns the current parent pid, or 0 when the platform cannot
	// tell.
	parent func() int
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithInterval overrides the probe interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger used to report the shutdown trigger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithProbes replaces the platform liveness and parent-pid probes.
func WithProbes(alive func(pid int) bool, parent func() int) Option {
	return func(w *Watchdog) {
		if alive != nil {
			w.alive = alive
		}
		if parent != nil {
			w.parent = parent
		}
	}
}

// New creates a watchdog for ppid. A ppid <= 0 produces a disabled watchdog
// whose Run blocks until the context is done.
func New(ppid int, opts ...Option) *Watchdog {
	w := &Watchdog{
		ppid:     ppid,
		interval: DefaultInterval,
		logger:   slog.Default(),
		alive:    processAlive,
		parent:   parentPID,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enabled reports whether the watchdog supervises a parent.
func (w *Watchdog) Enabled() bool {
	return w.ppid > 0
}

// Run probes the parent every interval until it disappears (ErrParentGone)
// or ctx is done (nil).
func (w *Watchdog) Run(ctx context.Context) error {
	if !w.Enabled() {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if reason := w.check(); reason != "" {
				w.logger.Warn("parent watchdog triggered", "ppid", w.ppid, "reason", reason)
				return ErrParentGone
			}
		}
	}
}

func (w *Watchdog) check() string {
	if !w.alive(w.ppid) {
		return "parent exited"
	}
	// Orphaned processes are adopted by init on unix.
	if w.ppid != 1 && w.parent() == 1 {
		return "reparented to init"
	}
	return ""
}
