package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/jobs"
	"github.com/seantiz/pdf2zh-engine/internal/jsonsafe"
	"github.com/seantiz/pdf2zh-engine/internal/model"
	"github.com/seantiz/pdf2zh-engine/internal/progress"
	"github.com/seantiz/pdf2zh-engine/internal/store"
)

// Raw engine event types the worker reacts to.
const (
	rawTypeFinish = "finish"
	rawTypeError  = "error"
)

// Engine orchestrates asynchronous translation jobs. Every submitted job runs
// on its own goroutine; there is no concurrency limit.
type Engine struct {
	jobs        *jobs.Registry
	translators *backend.Registry
	store       store.Store
	logger      *slog.Logger
	defaults    Defaults

	// ctx is the parent of every job context. It is canceled when shutdown
	// gives up waiting, which terminates engine subprocesses.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new translation engine.
func NewEngine(reg *jobs.Registry, translators *backend.Registry, s store.Store, logger *slog.Logger, d Defaults) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		jobs:        reg,
		translators: translators,
		store:       s,
		logger:      logger,
		defaults:    d,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Jobs returns the job registry the engine publishes to.
func (e *Engine) Jobs() *jobs.Registry {
	return e.jobs
}

// Submit registers a job for req and launches its execution in a goroutine.
// The job is running and visible in the registry before Submit returns.
// req must carry at least one input.
func (e *Engine) Submit(ctx context.Context, req model.TranslateRequest) (string, error) {
	if len(req.Inputs) == 0 {
		return "", errors.New("no input document")
	}
	if req.Service == "" {
		req.Service = model.DefaultService
	}

	id, job := e.jobs.Create()

	rec := &model.JobRecord{
		ID:             id,
		Status:         model.StatusRunning,
		Service:        req.Service,
		SourcePath:     req.SourcePath(),
		SourceFilename: req.SourceFilename,
		LangIn:         req.LangIn,
		LangOut:        req.LangOut,
		CreatedAt:      job.CreatedAt(),
	}
	// History is auxiliary; a store failure never blocks translation.
	if err := e.store.CreateJob(ctx, rec); err != nil {
		e.logger.Error("failed to record job", "job_id", id, "error", err)
	}

	jobsSubmittedTotal.WithLabelValues(req.Service).Inc()
	jobsActive.Inc()
	jobsRegistered.Set(float64(e.jobs.Len()))

	reqCopy := req
	reqCopy.Inputs = append([]string(nil), req.Inputs...)
	e.wg.Go(func() {
		e.execute(job, reqCopy)
	})

	return id, nil
}

// Wait blocks until all in-flight job goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Abort cancels every running job at once. Engine subprocesses are killed and
// the jobs fail; callers may still Shutdown to wait for their cleanup.
func (e *Engine) Abort() {
	e.cancel()
}

// Shutdown waits for in-flight jobs until ctx is done. If jobs are still
// running at that point their contexts are canceled and ctx.Err is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

// execute runs a job to its terminal state. The working directory is removed
// on every path.
func (e *Engine) execute(job *jobs.Job, req model.TranslateRequest) {
	start := time.Now()
	log := e.logger.With("job_id", job.ID(), "service", req.Service)
	log.Info("job started", "inputs", len(req.Inputs), "lang_in", req.LangIn, "lang_out", req.LangOut)

	var seq int
	record := func(ev model.Event) {
		if err := e.store.InsertEvent(context.Background(), job.ID(), seq, ev); err != nil {
			log.Error("failed to persist event", "seq", seq, "error", err)
		}
		seq++
		eventsPublishedTotal.WithLabelValues(ev.Type).Inc()
	}
	publish := func(ev model.Event) {
		if job.Publish(ev) {
			record(ev)
		}
	}

	res, err := e.run(req, publish, log)

	dur := int(time.Since(start).Milliseconds())
	finished := &model.JobRecord{ID: job.ID(), DurationMS: &dur}

	if err != nil {
		msg := err.Error()
		detail := fmt.Sprintf("%+v", err)
		log.Error("job failed", "error", msg, "detail", detail)
		if job.Fail(msg, detail) {
			record(model.ErrorEvent(msg, detail))
		}
		finished.Status = model.StatusFailed
		finished.Error = msg
	} else {
		log.Info("job completed", "filename", res.Filename, "duration_ms", dur)
		if job.Complete(res) {
			record(model.DoneEvent())
		}
		finished.Status = model.StatusCompleted
		finished.Filename = res.Filename
	}

	now := time.Now().UTC()
	finished.FinishedAt = &now
	if err := e.store.FinishJob(context.Background(), finished); err != nil {
		log.Error("failed to record job outcome", "error", err)
	}

	jobsActive.Dec()
	jobsFinishedTotal.WithLabelValues(req.Service, finished.Status).Inc()
	jobDuration.WithLabelValues(req.Service, finished.Status).Observe(time.Since(start).Seconds())
}

// run performs the translation and returns the success payload. Panics are
// converted into errors carrying the stack at the point of the panic.
func (e *Engine) run(req model.TranslateRequest, publish func(model.Event), log *slog.Logger) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	workDir, err := os.MkdirTemp(e.defaults.TempDir, "pdf2zh-engine-")
	if err != nil {
		return model.Result{}, errors.Wrap(err, "create working directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("failed to remove working directory", "dir", workDir, "error", rmErr)
		}
	}()

	settings, err := buildSettings(req, workDir, e.defaults)
	if err != nil {
		return model.Result{}, err
	}

	tr, err := e.translators.Resolve(req.Service)
	if err != nil {
		return model.Result{}, errors.WithStack(err)
	}

	ctx := e.ctx
	for _, input := range req.Inputs {
		var engineErr error
		emit := func(raw any) bool {
			safe := jsonsafe.Normalize(raw)
			if ev, ok := progress.FromRaw(safe); ok {
				publish(ev)
			}
			fields, _ := safe.(map[string]any)
			switch fields["type"] {
			case rawTypeFinish:
				return false
			case rawTypeError:
				engineErr = rawError(fields)
				return false
			}
			return true
		}

		if err := tr.Translate(ctx, settings, input, emit); err != nil {
			return model.Result{}, errors.Wrapf(err, "translate %s", input)
		}
		if engineErr != nil {
			return model.Result{}, engineErr
		}
	}

	out, err := findOutputPDF(workDir)
	if err != nil {
		return model.Result{}, err
	}

	if pages, err := countPages(out); err != nil {
		log.Warn("could not inspect output PDF", "path", out, "error", err)
	} else {
		log.Info("output PDF ready", "path", out, "pages", pages)
	}

	encoded, err := encodeFile(out)
	if err != nil {
		return model.Result{}, err
	}

	return model.SuccessResult(resultFilename(req.SourceFilename, req.SourcePath()), encoded), nil
}

// rawError builds the job error for an engine-reported error event.
func rawError(fields map[string]any) error {
	for _, key := range []string{"error", "message"} {
		if msg, ok := fields[key].(string); ok && msg != "" {
			return errors.New(msg)
		}
	}
	return errors.New("translation engine reported an error")
}
