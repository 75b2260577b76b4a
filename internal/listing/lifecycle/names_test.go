package lifecycle

import (
	"testing"
	"time"

	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
)

// go test -v --run TestNormalizeName
func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "abc", want: "ABCUSDT"},
		{in: " Pepe ", want: "PEPEUSDT"},
		{in: "btcusdt", want: "BTCUSDT"},
		{in: "", wantErr: true},
		{in: "usdt", wantErr: true},
		{in: "a b", wantErr: true},
		{in: "abc&x=1", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeName(tt.in, "USDT")
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// go test -v --run TestParseListingDate
func TestParseListingDate(t *testing.T) {
	dubai := time.FixedZone("UTC+04:00", 4*60*60)
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-03-01T14:00",
		"2024-03-01 14:00:00",
		"2024-03-01T14:00:00",
		"2024-03-01T10:00:00Z",
		"2024-03-01T12:00:00+02:00",
	} {
		got, err := ParseListingDate(in, dubai)
		if err != nil {
			t.Errorf("ParseListingDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseListingDate(%q) = %v, want %v", in, got.UTC(), want)
		}
	}

	if _, err := ParseListingDate("01/03/2024", dubai); err == nil {
		t.Error("expected error for unsupported layout")
	}
}

// go test -v --run TestStateOf
func TestStateOf(t *testing.T) {
	buyID := uint(1)
	buy := postgres.OrderRecord{ID: buyID, Side: mexc.SideBuy}
	sell := postgres.OrderRecord{ID: 2, Side: mexc.SideSell, ParentID: &buyID}
	secondBuy := postgres.OrderRecord{ID: 3, Side: mexc.SideBuy}

	tests := []struct {
		name   string
		symbol postgres.SymbolRecord
		orders []postgres.OrderRecord
		want   State
	}{
		{"unlisted", postgres.SymbolRecord{}, nil, StateAwaitingListing},
		{"listed without buy", postgres.SymbolRecord{IsListed: true}, nil, StateListed},
		{"open buy", postgres.SymbolRecord{IsListed: true}, []postgres.OrderRecord{buy}, StateAwaitingSale},
		{"sold", postgres.SymbolRecord{IsListed: true}, []postgres.OrderRecord{buy, sell}, StateSold},
		{"bought again", postgres.SymbolRecord{IsListed: true}, []postgres.OrderRecord{buy, sell, secondBuy}, StateAwaitingSale},
		{"finished", postgres.SymbolRecord{IsListed: true, IsFinished: true}, []postgres.OrderRecord{buy}, StateFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateOf(&tt.symbol, tt.orders); got != tt.want {
				t.Errorf("StateOf = %s, want %s", got, tt.want)
			}
		})
	}
}
