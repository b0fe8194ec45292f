package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/seantiz/pdf2zh-engine/internal/api"
	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/backend/subprocess"
	"github.com/seantiz/pdf2zh-engine/internal/config"
	"github.com/seantiz/pdf2zh-engine/internal/engine"
	"github.com/seantiz/pdf2zh-engine/internal/jobs"
	"github.com/seantiz/pdf2zh-engine/internal/model"
	"github.com/seantiz/pdf2zh-engine/internal/store"
	"github.com/seantiz/pdf2zh-engine/internal/watchdog"
)

// run wires the server from cfg and blocks until a termination signal, the
// parent watchdog or ctx ends it. The ready line goes to stdout; all logging
// goes to stderr and the optional log file.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	logger, closeLog := config.OpenLogger(stderr, cfg.Level(), cfg.LogFormat, cfg.LogDir)
	defer closeLog()
	logger = logger.With("session_id", uuid.NewString())

	logger.Info("pdf2zh-engine: starting",
		"port", cfg.Port,
		"ppid", cfg.PPID,
		"log_dir", cfg.LogDir,
		"db_path", cfg.History.DBPath,
		"engine_command", cfg.Engine.Command,
	)

	db, err := store.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()

	pipeline, err := subprocess.New(cfg.Engine.Command,
		subprocess.WithEnv(cfg.EngineEnv()...),
		subprocess.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("configure translation engine: %w", err)
	}
	translators := backend.NewRegistry()
	for _, service := range model.SupportedServices {
		translators.Register(service, pipeline)
	}

	registry := jobs.NewRegistry()
	eng := engine.NewEngine(registry, translators, db, logger, engine.Defaults{
		QPS:            cfg.Engine.QPS,
		Threads:        cfg.Engine.Threads,
		ReportInterval: cfg.Engine.ReportInterval,
		IgnoreCache:    cfg.Engine.IgnoreCache,
		Dual:           true,
		Pages:          cfg.Engine.Pages,
	})

	janitor, err := engine.NewJanitor(registry, cfg.Jobs.TTL.Duration, cfg.Jobs.SweepInterval.Duration, logger)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	wd := watchdog.New(cfg.PPID, watchdog.WithLogger(logger))
	go func() {
		if err := wd.Run(runCtx); err != nil {
			cancel(err)
		}
	}()

	srv := api.NewServer(db, translators, eng, logger, api.WithCORSOrigins(cfg.Server.CORSOrigins...))
	if err := srv.Run(runCtx, cfg.Port, stdout); err != nil {
		return err
	}

	if cause := context.Cause(runCtx); errors.Is(cause, watchdog.ErrParentGone) {
		logger.Info("pdf2zh-engine: parent process gone, exiting")
	}
	return nil
}
