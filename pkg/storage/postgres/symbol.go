package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func (p *PostgresClient) InsertSymbol(ctx context.Context, record *SymbolRecord) error {
	if err := p.DB.WithContext(ctx).Omit("History").Create(record).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, record.Name)
		}
		return err
	}
	return nil
}

func (p *PostgresClient) GetSymbolByName(ctx context.Context, name string) (*SymbolRecord, error) {
	var symbol SymbolRecord
	if err := p.DB.WithContext(ctx).Where("name = ?", name).First(&symbol).Error; err != nil {
		return nil, notFound(err)
	}
	return &symbol, nil
}

func (p *PostgresClient) GetSymbolByID(ctx context.Context, id uint) (*SymbolRecord, error) {
	var symbol SymbolRecord
	if err := p.DB.WithContext(ctx).First(&symbol, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &symbol, nil
}

// ListSymbolsNotListed returns symbols still waiting for their listing instant.
func (p *PostgresClient) ListSymbolsNotListed(ctx context.Context) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	err := p.DB.WithContext(ctx).
		Where("is_listed = ?", false).
		Order("listing_date, id").
		Find(&symbols).Error
	return symbols, err
}

// ListSymbolsListed returns every listed symbol, finished or not.
func (p *PostgresClient) ListSymbolsListed(ctx context.Context) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	err := p.DB.WithContext(ctx).
		Where("is_listed = ?", true).
		Order("listing_date DESC, id DESC").
		Find(&symbols).Error
	return symbols, err
}

// ListActiveSymbols returns listed symbols that have not reached the sample threshold.
func (p *PostgresClient) ListActiveSymbols(ctx context.Context) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	err := p.DB.WithContext(ctx).
		Where("is_listed = ? AND is_finished = ?", true, false).
		Order("id").
		Find(&symbols).Error
	return symbols, err
}

// MarkListed records the first tradeable price. It only applies to a symbol
// that is not listed yet, so PriceOnStart is written at most once; the
// returned bool reports whether this call won.
func (p *PostgresClient) MarkListed(ctx context.Context, id uint, price float64, at time.Time) (bool, error) {
	tx := p.DB.WithContext(ctx).
		Model(&SymbolRecord{}).
		Where("id = ? AND is_listed = ?", id, false).
		Updates(map[string]any{
			"is_listed":      true,
			"price_on_start": price,
			"listed_at":      at,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (p *PostgresClient) SetMinutePrice(ctx context.Context, id uint, price float64) error {
	return p.DB.WithContext(ctx).
		Model(&SymbolRecord{}).
		Where("id = ?", id).
		Update("price_on_minute", price).Error
}

// MarkFinished sets the terminal flag on a listed symbol. It never resets it.
func (p *PostgresClient) MarkFinished(ctx context.Context, id uint) (bool, error) {
	tx := p.DB.WithContext(ctx).
		Model(&SymbolRecord{}).
		Where("id = ? AND is_listed = ? AND is_finished = ?", id, true, false).
		Update("is_finished", true)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// ListFinishedWithHistory loads finished symbols with their samples in
// recording order.
func (p *PostgresClient) ListFinishedWithHistory(ctx context.Context) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	err := p.DB.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at, id")
		}).
		Where("is_finished = ?", true).
		Order("listing_date, id").
		Find(&symbols).Error
	return symbols, err
}
