// Package sampler appends hourly price samples for listed symbols and marks
// them finished once enough samples exist. It also hosts the periodic
// reconciliation of overdue sells.
package sampler

import (
	"context"
	"fmt"
	"time"

	"listingwatcher/config"
	"listingwatcher/internal/listing/events"
	"listingwatcher/internal/listing/metrics"
	"listingwatcher/pkg/storage/postgres"

	"github.com/go-co-op/gocron"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	ListActiveSymbols(ctx context.Context) ([]postgres.SymbolRecord, error)
	InsertHistory(ctx context.Context, record *postgres.HistoryRecord) error
	CountHistory(ctx context.Context, symbolID uint) (int64, error)
	MarkFinished(ctx context.Context, id uint) (bool, error)
}

type PriceSource interface {
	SamplePrice(ctx context.Context, name string) (decimal.Decimal, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// SampleReport summarises one SampleAll pass.
type SampleReport struct {
	Sampled  int `json:"sampled"`
	Failed   int `json:"failed"`
	Finished int `json:"finished"`
}

type Sampler struct {
	cfg        config.SamplerConfig
	store      Store
	prices     PriceSource
	reconciler Reconciler
	publisher  events.Publisher

	cron    *gocron.Scheduler
	ctx     context.Context
	cancel  context.CancelFunc
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a sampler. reconciler may be nil.
func New(cfg config.SamplerConfig, store Store, prices PriceSource, reconciler Reconciler,
	publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Sampler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 24
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if m == nil {
		m = metrics.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		cfg:        cfg,
		store:      store,
		prices:     prices,
		reconciler: reconciler,
		publisher:  publisher,
		cron:       gocron.NewScheduler(time.UTC),
		ctx:        ctx,
		cancel:     cancel,
		metrics:    m,
		logger:     logger.Named("sampler"),
	}
}

// Start registers the cron jobs and runs them in the background.
func (s *Sampler) Start() error {
	_, err := s.cron.Cron(s.cfg.Cron).SingletonMode().Do(func() {
		if _, err := s.SampleAll(s.ctx); err != nil {
			s.logger.Error("sampling failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sampler %q: %w", s.cfg.Cron, err)
	}

	if s.reconciler != nil && s.cfg.ReconcileInterval > 0 {
		_, err = s.cron.Every(s.cfg.ReconcileInterval).WaitForSchedule().SingletonMode().Do(func() {
			if _, err := s.reconciler.Reconcile(s.ctx); err != nil {
				s.logger.Error("reconcile failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule reconcile every %s: %w", s.cfg.ReconcileInterval, err)
		}
	}

	s.cron.StartAsync()
	s.logger.Info("sampler started",
		zap.String("cron", s.cfg.Cron),
		zap.Int64("threshold", s.cfg.Threshold),
		zap.Duration("reconcileInterval", s.cfg.ReconcileInterval),
	)
	return nil
}

func (s *Sampler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("sampler stopped")
}

// SampleAll records one price for every listed, unfinished symbol. A failed
// lookup skips the symbol until the next pass.
func (s *Sampler) SampleAll(ctx context.Context) (SampleReport, error) {
	var report SampleReport

	symbols, err := s.store.ListActiveSymbols(ctx)
	if err != nil {
		return report, fmt.Errorf("list active symbols: %w", err)
	}

	for i := range symbols {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		finished, err := s.sample(ctx, &symbols[i])
		if err != nil {
			report.Failed++
			s.metrics.Samples.WithLabelValues(metrics.ResultFailed).Inc()
			s.logger.Warn("failed to sample symbol", zap.String("symbol", symbols[i].Name), zap.Error(err))
			continue
		}
		report.Sampled++
		s.metrics.Samples.WithLabelValues(metrics.ResultOK).Inc()
		if finished {
			report.Finished++
		}
	}

	s.logger.Info("sampling done",
		zap.Int("sampled", report.Sampled),
		zap.Int("failed", report.Failed),
		zap.Int("finished", report.Finished),
	)
	return report, nil
}

func (s *Sampler) sample(ctx context.Context, symbol *postgres.SymbolRecord) (bool, error) {
	price, err := s.prices.SamplePrice(ctx, symbol.Name)
	if err != nil {
		return false, err
	}

	record := &postgres.HistoryRecord{SymbolID: symbol.ID, Price: price.InexactFloat64()}
	if err := s.store.InsertHistory(ctx, record); err != nil {
		return false, fmt.Errorf("insert history: %w", err)
	}

	sampled := events.New(events.TypeSymbolSampled, symbol.Name)
	sampled.Price = price.String()
	s.publish(ctx, sampled)

	count, err := s.store.CountHistory(ctx, symbol.ID)
	if err != nil {
		return false, fmt.Errorf("count history: %w", err)
	}
	if count < s.cfg.Threshold {
		return false, nil
	}

	won, err := s.store.MarkFinished(ctx, symbol.ID)
	if err != nil {
		return false, fmt.Errorf("mark finished: %w", err)
	}
	if won {
		s.logger.Info("symbol finished", zap.String("symbol", symbol.Name), zap.Int64("samples", count))
		s.publish(ctx, events.New(events.TypeSymbolFinished, symbol.Name))
	}
	return won, nil
}

func (s *Sampler) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
