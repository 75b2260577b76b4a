package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"listingwatcher/internal/listing/events"
	"listingwatcher/internal/listing/scheduler"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"

	"go.uber.org/zap"
)

// OnStart waits for the first tradeable price, records it and places the
// automatic buy. Duplicate fires are no-ops once the symbol is listed.
func (m *Machine) OnStart(ctx context.Context, msg scheduler.Message) error {
	name := msg.Key.Symbol
	log := m.logger.With(zap.String("symbol", name))

	symbol, err := m.symbol(ctx, name)
	if err != nil {
		return err
	}
	if symbol.IsListed {
		log.Debug("already listed, skipping start")
		return nil
	}

	price, err := m.gateway.PollPrice(ctx, name)
	if err != nil {
		return fmt.Errorf("poll start price of %s: %w", name, err)
	}

	won, err := m.store.MarkListed(ctx, symbol.ID, price.InexactFloat64(), m.now().UTC())
	if err != nil {
		return fmt.Errorf("mark %s listed: %w", name, err)
	}
	if !won {
		log.Info("listed by another writer, skipping buy")
		return nil
	}
	symbol.IsListed = true
	log.Info("symbol listed", zap.String("price", price.String()))

	buy, err := m.buy(ctx, symbol, m.opts.QuoteAmount)
	if err == nil {
		m.timers.Schedule(sellMessage(name, buy.ID), m.opts.HoldingWindow)
		m.timers.Schedule(minuteMessage(name), m.opts.MinuteDelay)
	}

	// events go out only once the buy and its timers are in place
	listed := events.New(events.TypeSymbolListed, name)
	listed.Price = price.String()
	m.publish(ctx, listed)
	m.orderEvent(ctx, name, mexc.SideBuy, buy, err)
	return err
}

// OnMinute records the single price sample taken shortly after listing.
func (m *Machine) OnMinute(ctx context.Context, msg scheduler.Message) error {
	name := msg.Key.Symbol

	symbol, err := m.symbol(ctx, name)
	if err != nil {
		return err
	}
	if symbol.PriceOnMinute != nil {
		return nil
	}

	price, err := m.gateway.SamplePrice(ctx, name)
	if err != nil {
		return fmt.Errorf("sample minute price of %s: %w", name, err)
	}
	if err := m.store.SetMinutePrice(ctx, symbol.ID, price.InexactFloat64()); err != nil {
		return fmt.Errorf("store minute price of %s: %w", name, err)
	}

	m.logger.Info("minute price recorded", zap.String("symbol", name), zap.String("price", price.String()))
	return nil
}

// OnSell closes the buy referenced by msg.OrderID with a market sell of its
// exact filled quantity.
func (m *Machine) OnSell(ctx context.Context, msg scheduler.Message) error {
	buy, err := m.loadBuy(ctx, msg.OrderID)
	if err != nil {
		return err
	}

	unlock := m.sells.lock(buy.ID)
	defer unlock()

	sold, err := m.store.HasSellFor(ctx, buy.ID)
	if err != nil {
		return fmt.Errorf("check sell of order %d: %w", buy.ID, err)
	}
	if sold {
		m.logger.Debug("buy already sold", zap.String("symbol", buy.Symbol.Name), zap.Uint("buyId", buy.ID))
		return nil
	}

	order, err := m.sell(ctx, buy)
	m.orderEvent(ctx, buy.Symbol.Name, mexc.SideSell, order, err)
	return err
}

func (m *Machine) loadBuy(ctx context.Context, id uint) (*postgres.OrderRecord, error) {
	buy, err := m.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if buy.Side != mexc.SideBuy {
		return nil, fmt.Errorf("%w: %d", ErrNotBuy, id)
	}
	if buy.Symbol == nil {
		return nil, fmt.Errorf("order %d has no symbol", id)
	}
	return buy, nil
}

func (m *Machine) buy(ctx context.Context, symbol *postgres.SymbolRecord, quote string) (*postgres.OrderRecord, error) {
	params := mexc.MarketBuyParams(symbol.Name, quote)
	return m.gateway.PlaceOrder(ctx, symbol, params, mexc.SideBuy, nil)
}

func (m *Machine) sell(ctx context.Context, buy *postgres.OrderRecord) (*postgres.OrderRecord, error) {
	params := mexc.MarketSellParams(buy.Symbol.Name, buy.OrigQty)
	return m.gateway.PlaceOrder(ctx, buy.Symbol, params, mexc.SideSell, buy)
}

// orderEvent publishes order.placed or order.failed for the outcome of an
// order attempt.
func (m *Machine) orderEvent(ctx context.Context, name string, side mexc.Side, order *postgres.OrderRecord, err error) {
	if err != nil {
		e := events.New(events.TypeOrderFailed, name)
		e.Side = string(side)
		e.Error = err.Error()
		m.publish(ctx, e)
		return
	}
	e := events.New(events.TypeOrderPlaced, name)
	e.Side = string(order.Side)
	e.OrderID = order.OrderID
	e.Price = order.Price
	m.publish(ctx, e)
}
