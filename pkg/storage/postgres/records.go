package postgres

import (
	"time"

	"listingwatcher/pkg/mexc"
)

// SymbolRecord is a tracked trading pair and its listing lifecycle flags.
type SymbolRecord struct {
	ID uint `gorm:"primaryKey"`

	Name        string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_symbol_name"`
	ListingDate time.Time `gorm:"not null"`

	PriceOnStart  *float64 `gorm:"type:numeric"`
	PriceOnMinute *float64 `gorm:"type:numeric"`

	IsListed   bool       `gorm:"not null;default:false;index:idx_symbol_state"`
	IsFinished bool       `gorm:"not null;default:false;index:idx_symbol_state"`
	ListedAt   *time.Time // set together with PriceOnStart

	CreatedAt time.Time `gorm:"autoCreateTime"`

	History []HistoryRecord `gorm:"foreignKey:SymbolID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name for GORM.
func (SymbolRecord) TableName() string {
	return "symbol_record"
}

// OrderRecord is an order accepted by the exchange. Price and OrigQty are
// stored exactly as returned.
type OrderRecord struct {
	ID uint `gorm:"primaryKey"`

	OrderID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_exchange_id"`
	Price   string    `gorm:"type:varchar(64);not null"`
	OrigQty string    `gorm:"type:varchar(64);not null"`
	Side    mexc.Side `gorm:"type:varchar(4);not null;index:idx_order_symbol_side"`

	SymbolID uint          `gorm:"not null;index:idx_order_symbol_side"`
	Symbol   *SymbolRecord `gorm:"foreignKey:SymbolID"`

	// ParentID links a sell to the buy it closes.
	ParentID *uint `gorm:"uniqueIndex:idx_order_parent"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (OrderRecord) TableName() string {
	return "order_record"
}

// HistoryRecord is one hourly price sample.
type HistoryRecord struct {
	ID       uint    `gorm:"primaryKey"`
	Price    float64 `gorm:"type:numeric;not null"`
	SymbolID uint    `gorm:"not null;index:idx_history_symbol"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_history_symbol"`
}

func (HistoryRecord) TableName() string {
	return "history_record"
}
