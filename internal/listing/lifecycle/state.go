package lifecycle

import (
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
)

// State is the position of a symbol in its lifecycle. It is derived from the
// symbol flags and its order rows, never stored.
type State string

const (
	StateAwaitingListing State = "awaiting_listing"
	StateListed          State = "listed"
	StateAwaitingSale    State = "awaiting_sale"
	StateSold            State = "sold"
	StateFinished        State = "finished"
)

// StateOf computes the state of symbol given all of its orders. A buy that
// no sell points back to keeps the symbol awaiting sale.
func StateOf(symbol *postgres.SymbolRecord, orders []postgres.OrderRecord) State {
	switch {
	case !symbol.IsListed:
		return StateAwaitingListing
	case symbol.IsFinished:
		return StateFinished
	}

	closed := make(map[uint]bool)
	sold := false
	for _, o := range orders {
		if o.Side == mexc.SideSell {
			sold = true
			if o.ParentID != nil {
				closed[*o.ParentID] = true
			}
		}
	}
	for _, o := range orders {
		if o.Side == mexc.SideBuy && !closed[o.ID] {
			return StateAwaitingSale
		}
	}
	if sold {
		return StateSold
	}
	return StateListed
}
