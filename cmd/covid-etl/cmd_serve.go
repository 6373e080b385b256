package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	httpadapter "github.com/covid-projections/covid-data-etl/internal/adapter/http"
	"github.com/covid-projections/covid-data-etl/internal/pipeline"
)

var serveFlags = runOptions{fetch: true}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run every dataset on RUN_INTERVAL and serve health, status and metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.source, "source", sourceCMDC, "Case feed source: cmdc or kafka")
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	p, err := a.newPipeline(serveFlags)
	if err != nil {
		return err
	}
	logger := a.logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	scheduler, err := schedule(ctx, p, a.cfg.RunInterval)
	if err != nil {
		return err
	}
	scheduler.StartAsync()
	logger.Info("scheduler started", "interval", a.cfg.RunInterval, "datasets", p.Datasets())

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop waits for a run in progress; ctx is already cancelled so it
	// returns at the next dataset boundary.
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// schedule registers a job that runs every dataset each interval, starting
// immediately. Runs never overlap.
func schedule(ctx context.Context, p *pipeline.Pipeline, interval time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(interval).Do(func() {
		// Failures are logged and recorded by the pipeline; readiness reflects them.
		_, _ = p.Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
