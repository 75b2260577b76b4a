package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BuyNow places a market buy for a listed symbol outside the automatic flow
// and arms its sell timer. quote defaults to the configured amount.
func (m *Machine) BuyNow(ctx context.Context, name, quote string) (*postgres.OrderRecord, error) {
	name, err := NormalizeName(name, m.opts.QuoteAsset)
	if err != nil {
		return nil, err
	}
	if quote == "" {
		quote = m.opts.QuoteAmount
	}
	if q, err := decimal.NewFromString(quote); err != nil || !q.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQty, quote)
	}

	symbol, err := m.symbol(ctx, name)
	if err != nil {
		return nil, err
	}
	if !symbol.IsListed {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, name)
	}

	if open, err := m.store.GetUnmatchedBuy(ctx, symbol.ID); err == nil {
		return nil, fmt.Errorf("%w: %s order %s", ErrOpenBuy, name, open.OrderID)
	} else if !errors.Is(err, postgres.ErrNotFound) {
		return nil, fmt.Errorf("lookup open buy of %s: %w", name, err)
	}

	buy, err := m.buy(ctx, symbol, quote)
	if err == nil {
		m.timers.Schedule(sellMessage(name, buy.ID), m.opts.HoldingWindow)
	}
	m.orderEvent(ctx, name, mexc.SideBuy, buy, err)
	if err != nil {
		return nil, err
	}

	m.logger.Info("manual buy placed", zap.String("symbol", name), zap.String("quote", quote))
	return buy, nil
}

// SellNow sells the buy with row id immediately, replacing its pending sell
// timer.
func (m *Machine) SellNow(ctx context.Context, id uint) (*postgres.OrderRecord, error) {
	buy, err := m.loadBuy(ctx, id)
	if err != nil {
		return nil, err
	}

	sold, err := m.store.HasSellFor(ctx, buy.ID)
	if err != nil {
		return nil, fmt.Errorf("check sell of order %d: %w", buy.ID, err)
	}
	if sold {
		return nil, fmt.Errorf("%w: %d", ErrAlreadySold, id)
	}

	key := sellKey(buy.Symbol.Name)
	if !m.timers.Cancel(key) && m.timers.Busy(key) {
		return nil, fmt.Errorf("%w: %s", ErrSellInProgress, buy.Symbol.Name)
	}

	unlock := m.sells.lock(buy.ID)
	defer unlock()

	// a sell handler may have finished between the checks above
	if sold, err := m.store.HasSellFor(ctx, buy.ID); err != nil {
		return nil, fmt.Errorf("check sell of order %d: %w", buy.ID, err)
	} else if sold {
		return nil, fmt.Errorf("%w: %d", ErrAlreadySold, id)
	}

	sell, err := m.sell(ctx, buy)
	m.orderEvent(ctx, buy.Symbol.Name, mexc.SideSell, sell, err)
	if err != nil {
		// put the automatic sell back
		due := buy.CreatedAt.Add(m.opts.HoldingWindow)
		m.timers.Schedule(sellMessage(buy.Symbol.Name, buy.ID), due.Sub(m.now()))
		return nil, err
	}
	m.logger.Info("manual sell placed", zap.String("symbol", buy.Symbol.Name), zap.Uint("buyId", buy.ID))
	return sell, nil
}
