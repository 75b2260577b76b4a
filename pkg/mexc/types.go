package mexc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString decodes a JSON string or number into its literal text, so
// decimal fields such as origQty keep the exchange's exact formatting.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// TickerPriceResponse is the body of GET /ticker/price.
type TickerPriceResponse struct {
	Symbol string     `json:"symbol"`
	Price  FlexString `json:"price"` // number or string; absent or "0" before listing
}

// OrderResponse is the body of POST /order. A populated Msg means the order
// was rejected.
type OrderResponse struct {
	Symbol       string     `json:"symbol"`
	OrderID      FlexString `json:"orderId"`
	Price        FlexString `json:"price"`
	OrigQty      FlexString `json:"origQty"`
	Side         Side       `json:"side"`
	Type         OrderType  `json:"type"`
	TransactTime int64      `json:"transactTime"`

	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// errorResponse is the generic MEXC error envelope.
type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// APIError is returned when the exchange answers with an error payload.
type APIError struct {
	StatusCode int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mexc error: status=%d code=%d msg=%s", e.StatusCode, e.Code, e.Msg)
}
