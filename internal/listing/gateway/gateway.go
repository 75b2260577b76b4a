// Package gateway wraps the exchange client with the listing watcher's
// price polling policy and order persistence.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listingwatcher/internal/listing/metrics"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrOrderFailed is returned when the exchange rejects an order or cannot
	// be reached. No order row is persisted.
	ErrOrderFailed = errors.New("order failed")
	// ErrPriceUnavailable means the ticker had no usable price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrOrderUnrecorded means the exchange accepted an order whose row could
	// not be stored. See UnrecordedOrderError for the exchange order id.
	ErrOrderUnrecorded = errors.New("order accepted but not recorded")
)

// UnrecordedOrderError describes an accepted order that is missing from the
// store and has to be repaired by hand.
type UnrecordedOrderError struct {
	Symbol  string
	Side    mexc.Side
	OrderID string
	Price   string
	OrigQty string
	Err     error
}

func (e *UnrecordedOrderError) Error() string {
	return fmt.Sprintf("%s: %s %s orderId=%s origQty=%s: %v",
		ErrOrderUnrecorded, e.Side, e.Symbol, e.OrderID, e.OrigQty, e.Err)
}

func (e *UnrecordedOrderError) Unwrap() []error {
	return []error{ErrOrderUnrecorded, e.Err}
}

type Exchange interface {
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, params []mexc.Param) (*mexc.OrderResponse, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, record *postgres.OrderRecord) error
}

// Options bound PollPrice. Zero MaxAttempts and MaxElapsed poll until the
// price appears or ctx is done.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  uint
	MaxElapsed   time.Duration
}

type Gateway struct {
	exchange Exchange
	store    OrderStore
	opts     Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func New(exchange Exchange, store OrderStore, opts Options, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Gateway{
		exchange: exchange,
		store:    store,
		opts:     opts,
		metrics:  m,
		logger:   logger.Named("gateway"),
	}
}

// PollPrice asks for the ticker price until it is positive. Zero prices and
// transport errors both count as "not tradeable yet".
func (g *Gateway) PollPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	attempts := 0
	op := func() (decimal.Decimal, error) {
		attempts++
		return g.lookup(ctx, name)
	}

	price, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.opts.PollInterval)),
		backoff.WithMaxTries(g.opts.MaxAttempts),
		backoff.WithMaxElapsedTime(g.opts.MaxElapsed),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.Zero, ctxErr
		}
		g.logger.Warn("price polling gave up", zap.String("symbol", name), zap.Int("attempts", attempts), zap.Error(err))
		return decimal.Zero, err
	}

	g.logger.Info("price available", zap.String("symbol", name), zap.String("price", price.String()), zap.Int("attempts", attempts))
	return price, nil
}

// SamplePrice performs a single lookup.
func (g *Gateway) SamplePrice(ctx context.Context, name string) (decimal.Decimal, error) {
	return g.lookup(ctx, name)
}

func (g *Gateway) lookup(ctx context.Context, name string) (decimal.Decimal, error) {
	price, err := g.exchange.GetTickerPrice(ctx, name)
	if err != nil {
		g.metrics.PricePolls.WithLabelValues(metrics.ResultError).Inc()
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, name, err)
	}
	if !price.IsPositive() {
		g.metrics.PricePolls.WithLabelValues(metrics.ResultZero).Inc()
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, name)
	}
	g.metrics.PricePolls.WithLabelValues(metrics.ResultOK).Inc()
	return price, nil
}

// PlaceOrder submits params and persists the accepted order for symbol.
// parent is the buy a sell closes, nil for buys.
func (g *Gateway) PlaceOrder(ctx context.Context, symbol *postgres.SymbolRecord, params []mexc.Param,
	side mexc.Side, parent *postgres.OrderRecord) (*postgres.OrderRecord, error) {
	log := g.logger.With(zap.String("symbol", symbol.Name), zap.String("side", string(side)))

	resp, err := g.exchange.PlaceOrder(ctx, params)
	if err != nil {
		g.metrics.Orders.WithLabelValues(string(side), metrics.ResultFailed).Inc()
		log.Error("order failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrOrderFailed, side, symbol.Name, err)
	}
	g.metrics.Orders.WithLabelValues(string(side), metrics.ResultOK).Inc()

	record := &postgres.OrderRecord{
		OrderID:  resp.OrderID.String(),
		Price:    resp.Price.String(),
		OrigQty:  resp.OrigQty.String(),
		Side:     side,
		SymbolID: symbol.ID,
	}
	if resp.Side.IsValid() {
		record.Side = resp.Side
	}
	if parent != nil {
		record.ParentID = &parent.ID
	}

	if err := g.store.InsertOrder(ctx, record); err != nil {
		log.Error("failed to persist accepted order",
			zap.String("orderId", record.OrderID),
			zap.String("origQty", record.OrigQty),
			zap.Error(err),
		)
		return nil, &UnrecordedOrderError{
			Symbol:  symbol.Name,
			Side:    record.Side,
			OrderID: record.OrderID,
			Price:   record.Price,
			OrigQty: record.OrigQty,
			Err:     err,
		}
	}

	log.Info("order placed",
		zap.String("orderId", record.OrderID),
		zap.String("price", record.Price),
		zap.String("origQty", record.OrigQty),
	)
	return record, nil
}
