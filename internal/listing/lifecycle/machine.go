// Package lifecycle drives a symbol from submission through listing, the
// automatic buy and the deferred sell. Durable progress lives in the store;
// the timers only say when to look at it again.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listingwatcher/config"
	"listingwatcher/internal/listing/events"
	"listingwatcher/internal/listing/scheduler"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	InsertSymbol(ctx context.Context, record *postgres.SymbolRecord) error
	GetSymbolByName(ctx context.Context, name string) (*postgres.SymbolRecord, error)
	ListSymbolsNotListed(ctx context.Context) ([]postgres.SymbolRecord, error)
	ListSymbolsListed(ctx context.Context) ([]postgres.SymbolRecord, error)
	ListActiveSymbols(ctx context.Context) ([]postgres.SymbolRecord, error)
	MarkListed(ctx context.Context, id uint, price float64, at time.Time) (bool, error)
	SetMinutePrice(ctx context.Context, id uint, price float64) error
	ListFinishedWithHistory(ctx context.Context) ([]postgres.SymbolRecord, error)

	GetOrder(ctx context.Context, id uint) (*postgres.OrderRecord, error)
	ListUnmatchedBuys(ctx context.Context) ([]postgres.OrderRecord, error)
	GetUnmatchedBuy(ctx context.Context, symbolID uint) (*postgres.OrderRecord, error)
	HasSellFor(ctx context.Context, buyID uint) (bool, error)
	ListOrdersBySymbol(ctx context.Context, symbolID uint) ([]postgres.OrderRecord, error)
}

type Gateway interface {
	PollPrice(ctx context.Context, name string) (decimal.Decimal, error)
	SamplePrice(ctx context.Context, name string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, symbol *postgres.SymbolRecord, params []mexc.Param,
		side mexc.Side, parent *postgres.OrderRecord) (*postgres.OrderRecord, error)
}

type Timers interface {
	Handle(phase scheduler.Phase, h scheduler.Handler)
	Schedule(msg scheduler.Message, delay time.Duration)
	Cancel(key scheduler.Key) bool
	Busy(key scheduler.Key) bool
	Running(key scheduler.Key) bool
}

type Options struct {
	QuoteAsset      string
	QuoteAmount     string
	HoldingWindow   time.Duration
	MinuteDelay     time.Duration
	StartLead       time.Duration
	Location        *time.Location
	StatisticsDepth int
}

// OptionsFromConfig maps the lifecycle section; depth caps the history
// prices reported per symbol in Statistics.
func OptionsFromConfig(cfg config.LifecycleConfig, depth int) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		QuoteAsset:      cfg.QuoteAsset,
		QuoteAmount:     cfg.QuoteAmount,
		HoldingWindow:   cfg.HoldingWindow,
		MinuteDelay:     cfg.MinuteDelay,
		StartLead:       cfg.StartLead,
		Location:        loc,
		StatisticsDepth: depth,
	}, nil
}

type Machine struct {
	store     Store
	gateway   Gateway
	timers    Timers
	publisher events.Publisher
	opts      Options
	now       func() time.Time
	logger    *zap.Logger

	sells orderLocks
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New builds the machine and registers its phase handlers on timers.
func New(store Store, gateway Gateway, timers Timers, publisher events.Publisher,
	opts Options, logger *zap.Logger, options ...Option) *Machine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatisticsDepth <= 0 {
		opts.StatisticsDepth = 24
	}

	m := &Machine{
		store:     store,
		gateway:   gateway,
		timers:    timers,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		logger:    logger.Named("lifecycle"),
	}
	for _, o := range options {
		o(m)
	}

	timers.Handle(scheduler.PhaseStart, m.OnStart)
	timers.Handle(scheduler.PhaseMinute, m.OnMinute)
	timers.Handle(scheduler.PhaseSell, m.OnSell)
	return m
}

func (m *Machine) Options() Options {
	return m.opts
}

// CreateSymbol registers a symbol that lists at listing and arms its start
// timer StartLead ahead of it. Listings already in the past are stored but
// left for RestartAll.
func (m *Machine) CreateSymbol(ctx context.Context, name string, listing time.Time) (*postgres.SymbolRecord, error) {
	name, err := NormalizeName(name, m.opts.QuoteAsset)
	if err != nil {
		return nil, err
	}

	if _, err := m.store.GetSymbolByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolExists, name)
	} else if !errors.Is(err, postgres.ErrNotFound) {
		return nil, fmt.Errorf("lookup symbol %s: %w", name, err)
	}

	symbol := &postgres.SymbolRecord{Name: name, ListingDate: listing.UTC()}
	if err := m.store.InsertSymbol(ctx, symbol); err != nil {
		if errors.Is(err, postgres.ErrDuplicateSymbol) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolExists, name)
		}
		return nil, fmt.Errorf("insert symbol %s: %w", name, err)
	}

	delay := listing.Sub(m.now()) - m.opts.StartLead
	if delay > 0 {
		m.timers.Schedule(startMessage(name), delay)
	}

	m.logger.Info("symbol created",
		zap.String("symbol", name),
		zap.Time("listingDate", symbol.ListingDate),
		zap.Duration("startIn", delay),
	)
	m.publish(ctx, events.New(events.TypeSymbolCreated, name))
	return symbol, nil
}

// CreateSymbolAt parses a submitted listing date in the configured zone.
func (m *Machine) CreateSymbolAt(ctx context.Context, name, listingDate string) (*postgres.SymbolRecord, error) {
	listing, err := ParseListingDate(listingDate, m.opts.Location)
	if err != nil {
		return nil, err
	}
	return m.CreateSymbol(ctx, name, listing)
}

// State returns the lifecycle state of a symbol.
func (m *Machine) State(ctx context.Context, name string) (State, error) {
	symbol, err := m.symbol(ctx, name)
	if err != nil {
		return "", err
	}
	orders, err := m.store.ListOrdersBySymbol(ctx, symbol.ID)
	if err != nil {
		return "", fmt.Errorf("list orders of %s: %w", name, err)
	}
	return StateOf(symbol, orders), nil
}

func (m *Machine) symbol(ctx context.Context, name string) (*postgres.SymbolRecord, error) {
	symbol, err := m.store.GetSymbolByName(ctx, name)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
		}
		return nil, fmt.Errorf("load symbol %s: %w", name, err)
	}
	return symbol, nil
}

// publish never fails a transition.
func (m *Machine) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.logger.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("symbol", e.Symbol),
			zap.Error(err),
		)
	}
}

func startMessage(name string) scheduler.Message {
	return scheduler.Message{Key: scheduler.Key{Symbol: name, Phase: scheduler.PhaseStart}}
}

func minuteMessage(name string) scheduler.Message {
	return scheduler.Message{Key: scheduler.Key{Symbol: name, Phase: scheduler.PhaseMinute}}
}

func sellMessage(name string, buyID uint) scheduler.Message {
	return scheduler.Message{Key: sellKey(name), OrderID: buyID}
}

func sellKey(name string) scheduler.Key {
	return scheduler.Key{Symbol: name, Phase: scheduler.PhaseSell}
}
