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

	httpadapter "github.com/adscope/marketing-rag/internal/adapters/http"
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
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Readers rebuild their index snapshots when a worker publishes an
	// index-updated event for a collection. The subscription blocks until
	// shutdown, so it runs alongside the HTTP server.
	go func() {
		err := app.Queue.SubscribeIndexUpdated(ctx, func(_ context.Context, collection domain.Collection) error {
			if err := app.Lexical.Reload(collection); err != nil {
				return err
			}
			return app.Metadata.Reload(collection)
		})
		if err != nil {
			slog.Error("index subscription error", "error", err)
		}
	}()

	m := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.Ingestor, app.Searcher, app.Router, app.Planner, app.Answerer,
		app.Health, app.Registry, app.Queue, m, "api",
	).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
