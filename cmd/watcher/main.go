package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"listingwatcher/config"
	"listingwatcher/internal/listing/watcher"
	"listingwatcher/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configDir)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	cfg.ResolveSecrets()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run watcher
	w, err := watcher.Start(ctx, cfg, log)
	if err != nil {
		log.Fatal("watcher failed", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-w.Errors():
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), watcher.ShutdownTimeout(cfg))
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}
