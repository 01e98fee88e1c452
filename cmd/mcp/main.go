package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/adscope/marketing-rag/internal/adapters/mcp"
	"github.com/adscope/marketing-rag/internal/bootstrap"
	"github.com/adscope/marketing-rag/internal/config"
	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// Stdout carries the MCP protocol stream; logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

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

	server := mcpadapter.NewServer(app.Searcher, app.Router, version)
	if err := server.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
