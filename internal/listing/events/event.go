// Package events fans lifecycle transitions out to Kafka and websocket
// subscribers. Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSymbolCreated  Type = "symbol.created"
	TypeSymbolListed   Type = "symbol.listed"
	TypeOrderPlaced    Type = "order.placed"
	TypeOrderFailed    Type = "order.failed"
	TypeSymbolSampled  Type = "symbol.sampled"
	TypeSymbolFinished Type = "symbol.finished"
)

// Event is one lifecycle transition of a symbol.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Symbol  string    `json:"symbol"`
	Side    string    `json:"side,omitempty"`
	OrderID string    `json:"orderId,omitempty"`
	Price   string    `json:"price,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// New stamps an event with a fresh id and the current UTC time.
func New(t Type, symbol string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		Symbol: symbol,
		At:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
