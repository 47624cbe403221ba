package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig(os.Getenv("YTMANIFEST_CONFIG"))
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info("starting ytmanifest",
		"addr", cfg.ListenAddr,
		"max_concurrent", cfg.MaxConcurrentExtractions,
		"extraction_timeout", cfg.ExtractionTimeout(),
		"queue_timeout", cfg.QueueTimeout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, log)

	refresher := NewRefreshScheduler(cfg, newHTTPClient(30*time.Second), server.extractor.(*Extractor), log)
	refresher.Start(ctx)

	if publisher := NewStatsPublisher(ctx, cfg, server.stats, log); publisher != nil {
		go publisher.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}

	refresher.Wait()
	log.Info("shutdown complete")
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
