package api

import "time"

// Res is the envelope of every JSON response.
type Res struct {
	Success bool `json:"success"`
	Error   any  `json:"error"`
	Data    any  `json:"data"`
}

type ErrorType struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type CreateSymbolReq struct {
	Name        string `json:"name" binding:"required"`
	ListingDate string `json:"listingDate" binding:"required"` // RFC 3339, or wall clock in the listing zone
}

type BuyReq struct {
	QuoteOrderQty string `json:"quoteOrderQty"`
}

type SymbolRes struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ListingDate time.Time `json:"listingDate"`
	IsListed    bool      `json:"isListed"`
}

type OrderRes struct {
	ID       uint   `json:"id"`
	OrderID  string `json:"orderId"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	OrigQty  string `json:"origQty"`
	ParentID *uint  `json:"parentId,omitempty"`
}

type HealthRes struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Timers   int    `json:"timers"`
}
