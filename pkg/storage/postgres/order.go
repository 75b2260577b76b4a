package postgres

import (
	"context"
	"errors"
	"fmt"

	"listingwatcher/pkg/mexc"

	"gorm.io/gorm/clause"
)

// unmatchedBuy selects buys that no sell points back to.
const unmatchedBuy = "order_record.side = ? AND NOT EXISTS " +
	"(SELECT 1 FROM order_record AS sell WHERE sell.parent_id = order_record.id AND sell.side = ?)"

func (p *PostgresClient) InsertOrder(ctx context.Context, record *OrderRecord) error {
	if err := p.DB.WithContext(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, record.OrderID)
		}
		return err
	}
	return nil
}

// GetOrder loads an order with its symbol.
func (p *PostgresClient) GetOrder(ctx context.Context, id uint) (*OrderRecord, error) {
	var order OrderRecord
	if err := p.DB.WithContext(ctx).Preload("Symbol").First(&order, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListUnmatchedBuys returns every buy still awaiting its sell, oldest first.
func (p *PostgresClient) ListUnmatchedBuys(ctx context.Context) ([]OrderRecord, error) {
	var orders []OrderRecord
	err := p.DB.WithContext(ctx).
		Preload("Symbol").
		Where(unmatchedBuy, string(mexc.SideBuy), string(mexc.SideSell)).
		Order("order_record.created_at, order_record.id").
		Find(&orders).Error
	return orders, err
}

// GetUnmatchedBuy returns the open buy of a symbol, or ErrNotFound.
func (p *PostgresClient) GetUnmatchedBuy(ctx context.Context, symbolID uint) (*OrderRecord, error) {
	var order OrderRecord
	err := p.DB.WithContext(ctx).
		Preload("Symbol").
		Where("order_record.symbol_id = ?", symbolID).
		Where(unmatchedBuy, string(mexc.SideBuy), string(mexc.SideSell)).
		Order("order_record.id").
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// HasSellFor reports whether a sell closing buyID exists.
func (p *PostgresClient) HasSellFor(ctx context.Context, buyID uint) (bool, error) {
	var sell OrderRecord
	err := p.DB.WithContext(ctx).
		Select("id").
		Where("parent_id = ? AND side = ?", buyID, string(mexc.SideSell)).
		Take(&sell).Error
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListOrdersBySymbol returns all orders of a symbol in placement order.
func (p *PostgresClient) ListOrdersBySymbol(ctx context.Context, symbolID uint) ([]OrderRecord, error) {
	var orders []OrderRecord
	err := p.DB.WithContext(ctx).
		Where("symbol_id = ?", symbolID).
		Order("created_at, id").
		Find(&orders).Error
	return orders, err
}
