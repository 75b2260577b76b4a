package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Param is one query parameter of a signed request. Order matters: the
// signature is computed over parameters in the order they were added.
type Param struct {
	Key      string
	Value    string
	Disabled bool
}

// MarketBuyParams spends quoteQty of the quote asset on symbol.
func MarketBuyParams(symbol, quoteQty string) []Param {
	return []Param{
		{Key: "symbol", Value: symbol},
		{Key: "side", Value: string(SideBuy)},
		{Key: "type", Value: string(OrderTypeMarket)},
		{Key: "quoteOrderQty", Value: quoteQty},
	}
}

// MarketSellParams sells quantity of the base asset of symbol.
func MarketSellParams(symbol, quantity string) []Param {
	return []Param{
		{Key: "symbol", Value: symbol},
		{Key: "side", Value: string(SideSell)},
		{Key: "type", Value: string(OrderTypeMarket)},
		{Key: "quantity", Value: quantity},
	}
}

// CanonicalQuery drops caller-supplied signature/timestamp keys, blank values
// and disabled entries, appends timestamp and joins key=value pairs with '&'
// in insertion order. Values are not URL-encoded; the exchange verifies the
// signature over this exact text.
func CanonicalQuery(params []Param, timestamp int64) string {
	var sb strings.Builder
	for _, p := range params {
		if p.Key == "signature" || p.Key == "timestamp" {
			continue
		}
		if p.Disabled || strings.TrimSpace(p.Value) == "" {
			continue
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
		sb.WriteByte('&')
	}
	sb.WriteString("timestamp=")
	sb.WriteString(strconv.FormatInt(timestamp, 10))
	return sb.String()
}

// Sign returns hex(HMAC-SHA256(secret, payload)).
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedQuery is CanonicalQuery followed by &signature=<hex>.
func SignedQuery(params []Param, timestamp int64, secret string) string {
	query := CanonicalQuery(params, timestamp)
	return query + "&signature=" + Sign(secret, query)
}
