package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
)

type SymbolView struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	ListingDate   time.Time  `json:"listingDate"`
	PriceOnStart  *float64   `json:"priceOnStart"`
	PriceOnMinute *float64   `json:"priceOnMinute"`
	ListedAt      *time.Time `json:"listedAt,omitempty"`
	State         State      `json:"state"`
}

type OrderView struct {
	ID        uint      `json:"id"`
	OrderID   string    `json:"orderId"`
	Symbol    string    `json:"symbol"`
	Side      mexc.Side `json:"side"`
	Price     string    `json:"price"`
	OrigQty   string    `json:"origQty"`
	CreatedAt time.Time `json:"createdAt"`
	SellDue   time.Time `json:"sellDue"`
}

// Overview is the operator dashboard: symbols waiting for listing, listed
// symbols and buys not sold yet.
type Overview struct {
	Upcoming []SymbolView `json:"upcoming"`
	Listed   []SymbolView `json:"listed"`
	NotSold  []OrderView  `json:"notSold"`
}

func (m *Machine) Overview(ctx context.Context) (*Overview, error) {
	upcoming, err := m.store.ListSymbolsNotListed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unlisted symbols: %w", err)
	}
	listed, err := m.store.ListSymbolsListed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listed symbols: %w", err)
	}
	buys, err := m.store.ListUnmatchedBuys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unmatched buys: %w", err)
	}

	out := &Overview{
		Upcoming: make([]SymbolView, 0, len(upcoming)),
		Listed:   make([]SymbolView, 0, len(listed)),
		NotSold:  make([]OrderView, 0, len(buys)),
	}
	for i := range upcoming {
		out.Upcoming = append(out.Upcoming, symbolView(&upcoming[i], StateAwaitingListing))
	}
	for i := range listed {
		s := &listed[i]
		state := StateFinished
		if !s.IsFinished {
			orders, err := m.store.ListOrdersBySymbol(ctx, s.ID)
			if err != nil {
				return nil, fmt.Errorf("list orders of %s: %w", s.Name, err)
			}
			state = StateOf(s, orders)
		}
		out.Listed = append(out.Listed, symbolView(s, state))
	}
	for _, b := range buys {
		v := OrderView{
			ID:        b.ID,
			OrderID:   b.OrderID,
			Side:      b.Side,
			Price:     b.Price,
			OrigQty:   b.OrigQty,
			CreatedAt: b.CreatedAt,
			SellDue:   b.CreatedAt.Add(m.opts.HoldingWindow),
		}
		if b.Symbol != nil {
			v.Symbol = b.Symbol.Name
		}
		out.NotSold = append(out.NotSold, v)
	}
	return out, nil
}

func symbolView(s *postgres.SymbolRecord, state State) SymbolView {
	return SymbolView{
		ID:            s.ID,
		Name:          s.Name,
		ListingDate:   s.ListingDate,
		PriceOnStart:  s.PriceOnStart,
		PriceOnMinute: s.PriceOnMinute,
		ListedAt:      s.ListedAt,
		State:         state,
	}
}

// StatisticsRow is one finished symbol. It encodes as
// {"symbol", "priceOnStart", "priceOnMinute", "1": p1, ... "24": p24}.
type StatisticsRow struct {
	Symbol        string
	PriceOnStart  *float64
	PriceOnMinute *float64
	History       []float64
}

func (r StatisticsRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.History)+3)
	out["symbol"] = r.Symbol
	out["priceOnStart"] = r.PriceOnStart
	out["priceOnMinute"] = r.PriceOnMinute
	for i, p := range r.History {
		out[strconv.Itoa(i+1)] = p
	}
	return json.Marshal(out)
}

// Statistics reports finished symbols with their first hourly samples.
func (m *Machine) Statistics(ctx context.Context) ([]StatisticsRow, error) {
	symbols, err := m.store.ListFinishedWithHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("list finished symbols: %w", err)
	}

	rows := make([]StatisticsRow, 0, len(symbols))
	for _, s := range symbols {
		row := StatisticsRow{
			Symbol:        s.Name,
			PriceOnStart:  s.PriceOnStart,
			PriceOnMinute: s.PriceOnMinute,
		}
		for j := 0; j < len(s.History) && j < m.opts.StatisticsDepth; j++ {
			row.History = append(row.History, s.History[j].Price)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
