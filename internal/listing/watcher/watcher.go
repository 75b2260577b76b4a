// Package watcher wires the listing watcher components into one process.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listingwatcher/config"
	"listingwatcher/internal/listing/api"
	"listingwatcher/internal/listing/events"
	"listingwatcher/internal/listing/gateway"
	"listingwatcher/internal/listing/lifecycle"
	"listingwatcher/internal/listing/metrics"
	"listingwatcher/internal/listing/sampler"
	"listingwatcher/internal/listing/scheduler"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Watcher owns the running components of the listing watcher.
type Watcher struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *postgres.PostgresClient
	scheduler  *scheduler.Scheduler
	machine    *lifecycle.Machine
	sampler    *sampler.Sampler
	hub        *events.Hub
	kafka      *events.KafkaPublisher
	eventQueue *events.Async
	server     *api.Server
	serverErr  <-chan error
}

// Start connects to the database, rebuilds pending timers from it and
// starts the sampler and the HTTP API.
func Start(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{cfg: cfg, logger: logger}

	// Initialize PostgreSQL Client
	db, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Environment, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	w.db = db

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	restClient := mexc.NewRESTClient(cfg.MEXC.BaseURL, cfg.MEXC.APIKey, cfg.MEXC.APISecret,
		cfg.MEXC.Timeout, cfg.MEXC.RequestsPerSecond)
	gw := gateway.New(restClient, db, gateway.Options{
		PollInterval: cfg.Lifecycle.PollInterval,
		MaxAttempts:  cfg.Lifecycle.PollMaxAttempts,
		MaxElapsed:   cfg.Lifecycle.PollMaxElapsed,
	}, m, logger)

	w.hub = events.NewHub(logger.Named("ws"))
	publishers := events.Multi{w.hub}
	if len(cfg.Kafka.Brokers) > 0 {
		w.kafka = events.NewKafkaPublisher(cfg.Kafka, logger.Named("kafka"))
		publishers = append(publishers, w.kafka)
	}
	w.eventQueue = events.NewAsync(publishers, 1024, 5*time.Second, logger.Named("events"))

	opts, err := lifecycle.OptionsFromConfig(cfg.Lifecycle, int(cfg.Sampler.Threshold))
	if err != nil {
		w.close()
		return nil, err
	}

	w.scheduler = scheduler.New(m, logger)
	w.machine = lifecycle.New(db, gw, w.scheduler, w.eventQueue, opts, logger)

	report, err := w.machine.RestartAll(ctx)
	if err != nil {
		w.close()
		return nil, fmt.Errorf("failed to restart timers: %w", err)
	}
	logger.Info("lifecycle restored", zap.Int("timers", report.Total()), zap.Int("skipped", report.Skipped))

	w.sampler = sampler.New(cfg.Sampler, db, gw, w.machine, w.eventQueue, m, logger)
	if err := w.sampler.Start(); err != nil {
		w.close()
		return nil, err
	}

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterOptions{
		Handler: api.NewHandler(w.machine, db, w.scheduler),
		Events:  w.hub,
		Metrics: m.Handler(),
		Logger:  logger.Named("http"),
	})
	w.server = api.NewServer(cfg.HTTP.Addr, router, logger)
	w.serverErr = w.server.Start()

	return w, nil
}

// Errors reports a failed HTTP listener.
func (w *Watcher) Errors() <-chan error {
	return w.serverErr
}

// Shutdown stops accepting requests, stops the timers and waits for running
// lifecycle handlers until ctx is done.
func (w *Watcher) Shutdown(ctx context.Context) error {
	var errs []error
	if err := w.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	w.sampler.Stop()
	if err := w.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := w.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (w *Watcher) close() error {
	var errs []error
	// drain queued events while their sinks are still open
	if w.eventQueue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.eventQueue.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("events close: %w", err))
		}
		cancel()
	}
	if w.hub != nil {
		w.hub.Close()
	}
	if w.kafka != nil {
		if err := w.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ShutdownTimeout is the grace period used by cmd/watcher.
func ShutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 10 * time.Second
}
