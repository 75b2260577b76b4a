package mexc

import "fmt"

// Side is the order direction as the exchange spells it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the MEXC spot order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// APIKeyHeader carries the access key on signed requests.
const APIKeyHeader = "x-mexc-apikey"

const (
	tickerPricePath = "/ticker/price"
	orderPath       = "/order"
)

// IsValid checks if the Side is one of the predefined sides.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide parses a string into a valid Side.
func ParseSide(s string) (Side, error) {
	side := Side(s)
	if !side.IsValid() {
		return "", fmt.Errorf("invalid side: %s", s)
	}
	return side, nil
}
