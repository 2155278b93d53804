package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/dam-data-etl/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refresh the realtime snapshot every FETCH_INTERVAL",
	Long: `Run the realtime fetch immediately and then on FETCH_INTERVAL until
interrupted. The station master is built first when MASTER_FILE is missing.
Health, readiness, metrics and the latest snapshot are served on HTTP_ADDR.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if _, err := os.Stat(a.cfg.MasterFile); errors.Is(err, fs.ErrNotExist) {
		logger.Info("master file missing, building it first", "path", a.cfg.MasterFile)
		if err := a.masterBuilder().Run(ctx, a.cfg.MasterFile); err != nil {
			return fmt.Errorf("initial master build: %w", err)
		}
	}

	fetcher := a.realtimeFetcher()
	job := func(ctx context.Context) error {
		_, err := fetcher.Run(ctx)
		return err
	}
	p := pipeline.New("realtime", job, a.cfg.FetchInterval, a.clock, logger, a.metrics)

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, a.cfg.RealtimeFile, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}
