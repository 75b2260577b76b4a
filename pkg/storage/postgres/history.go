package postgres

import "context"

func (p *PostgresClient) InsertHistory(ctx context.Context, record *HistoryRecord) error {
	return p.DB.WithContext(ctx).Create(record).Error
}

func (p *PostgresClient) CountHistory(ctx context.Context, symbolID uint) (int64, error) {
	var count int64
	err := p.DB.WithContext(ctx).
		Model(&HistoryRecord{}).
		Where("symbol_id = ?", symbolID).
		Count(&count).Error
	return count, err
}
