package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adscope/marketing-rag/internal/bootstrap"
	"github.com/adscope/marketing-rag/internal/config"
	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/observability/logging"
	"github.com/adscope/marketing-rag/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsHandler(m),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSIngestSubject)
	err = app.Queue.SubscribeIngestBatch(ctx, func(handlerCtx context.Context, documentIDs []string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		m.StartBatch()
		start := time.Now()
		report, err := app.Ingestor.ReingestByIDs(processCtx, documentIDs)
		m.FinishBatch(time.Since(start), err)
		if report != nil {
			succeeded, failed, chunks := batchCounts(report)
			m.RecordDocuments(succeeded, failed, chunks)
		}
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

// batchCounts maps an ingest report onto the worker document metrics.
// report.Documents already counts only indexed documents; failures are
// tallied separately from the error list.
func batchCounts(report *domain.IngestReport) (succeeded, failed, chunks int) {
	return report.Documents, len(report.Errors), report.ChunksCreated
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
