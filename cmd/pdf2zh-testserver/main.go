// pdf2zh-testserver starts the job server with the stub translator for
// frontend development and E2E testing. No translation pipeline is needed.
// Usage: go run ./cmd/pdf2zh-testserver --delay 200ms
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/pdf2zh-engine/internal/api"
	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/backend/stub"
	"github.com/seantiz/pdf2zh-engine/internal/config"
	"github.com/seantiz/pdf2zh-engine/internal/engine"
	"github.com/seantiz/pdf2zh-engine/internal/jobs"
	"github.com/seantiz/pdf2zh-engine/internal/model"
	"github.com/seantiz/pdf2zh-engine/internal/store"
)

func main() {
	var (
		port     int
		steps    int
		pages    int
		delay    time.Duration
		failWith string
	)

	cmd := &cobra.Command{
		Use:           "pdf2zh-testserver",
		Short:         "Job server backed by a stub translator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := config.NewLogger(os.Stderr, config.Default().Level(), config.FormatText)

			db, err := store.NewSQLiteStore(store.MemoryPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			translators := backend.NewRegistry()
			tr := &stub.Translator{Steps: steps, Delay: delay, Pages: pages, FailWith: failWith}
			for _, service := range model.SupportedServices {
				translators.Register(service, tr)
			}

			eng := engine.NewEngine(jobs.NewRegistry(), translators, db, logger, engine.DefaultSettings())
			srv := api.NewServer(db, translators, eng, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("testserver: starting", "port", port, "steps", steps, "delay", delay.String())
			return srv.Run(ctx, port, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Loopback port to listen on (0 picks a free port)")
	cmd.Flags().IntVar(&steps, "steps", 5, "Progress events per job")
	cmd.Flags().IntVar(&pages, "pages", 2, "Pages in the generated PDF")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "Delay between events")
	cmd.Flags().StringVar(&failWith, "fail", "", "Fail every job with this message")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
