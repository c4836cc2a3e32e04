package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/transit-incident-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/transit-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
	"github.com/couchcryptid/transit-incident-etl/internal/search"
)

func newSearchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Serve the search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := observability.NewMetrics()
			index, err := openSearchIndex(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			if err := index.EnsureIndex(ctx); err != nil {
				e.logger.Warn("search index not ensured", "index", index.Index(), "error", err)
			}

			svc := search.NewService(index, e.cfg.SearchTimeout, e.logger, metrics)
			srv := httpadapter.NewServer(e.cfg.HTTPAddr, index, e.logger,
				httpadapter.WithSearch(svc, e.cfg.CORSAllowOrigin))

			serve(ctx, srv, e.logger, e.cfg.ShutdownTimeout)
			return nil
		},
	}
}

func newWorkerCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve job triggers and stream vehicle pings into the warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := observability.NewMetrics()
			w, err := openWorker(ctx, e.cfg, e.logger, metrics)
			if err != nil {
				return err
			}
			defer w.Close()

			registry, err := w.registry()
			if err != nil {
				return err
			}

			reader := kafkaadapter.NewReader(e.cfg, e.logger)
			defer func() {
				if err := reader.Close(); err != nil {
					e.logger.Error("kafka reader close error", "error", err)
				}
			}()
			loader := pipeline.NewWarehouseLoader(w.warehouse, pipeline.PingsTable, e.logger)
			p := pipeline.New(reader, pipeline.NewTransformer(), loader, e.logger, metrics, e.cfg.BatchSize)

			srv := httpadapter.NewServer(e.cfg.HTTPAddr, readiness{w.warehouse, p}, e.logger,
				httpadapter.WithJobs(registry))

			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := p.Run(ctx); err != nil {
					e.logger.Error("pipeline error", "error", err)
				}
			}()

			serve(ctx, srv, e.logger, e.cfg.ShutdownTimeout)
			<-done
			return nil
		},
	}
}

// serve runs srv until ctx is cancelled, then drains it within timeout.
func serve(ctx context.Context, srv *httpadapter.Server, logger *slog.Logger, timeout time.Duration) {
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
