package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"listingwatcher/internal/listing/events"
	"listingwatcher/internal/listing/gateway"
	"listingwatcher/internal/listing/scheduler"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
	storagetest "listingwatcher/pkg/storage/postgres/test"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeExchange serves scripted ticker prices (the last one repeats) and
// accepts orders unless orderErr is set.
type fakeExchange struct {
	mu          sync.Mutex
	prices      []decimal.Decimal
	tickerCalls int
	orderErr    error
	orders      [][]mexc.Param
}

func (f *fakeExchange) GetTickerPrice(context.Context, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerCalls++
	if len(f.prices) == 0 {
		return decimal.Zero, nil
	}
	return f.prices[min(f.tickerCalls-1, len(f.prices)-1)], nil
}

func (f *fakeExchange) PlaceOrder(_ context.Context, params []mexc.Param) (*mexc.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, params)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return &mexc.OrderResponse{
		OrderID: mexc.FlexString(fmt.Sprintf("C02__%d", len(f.orders))),
		Price:   "0.1000",
		OrigQty: "60.00",
		Side:    mexc.Side(param(params, "side")),
	}, nil
}

func (f *fakeExchange) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeExchange) lastOrder() []mexc.Param {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[len(f.orders)-1]
}

// gatedExchange holds every order until release is closed.
type gatedExchange struct {
	*fakeExchange
	entered chan struct{}
	release chan struct{}
}

func newGatedExchange(inner *fakeExchange) *gatedExchange {
	return &gatedExchange{
		fakeExchange: inner,
		entered:      make(chan struct{}, 8),
		release:      make(chan struct{}),
	}
}

func (g *gatedExchange) PlaceOrder(ctx context.Context, params []mexc.Param) (*mexc.OrderResponse, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.fakeExchange.PlaceOrder(ctx, params)
}

func param(params []mexc.Param, key string) string {
	for _, p := range params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

func decimals(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

type scheduled struct {
	msg   scheduler.Message
	delay time.Duration
}

// fakeTimers records registrations instead of running them.
type fakeTimers struct {
	mu       sync.Mutex
	handlers map[scheduler.Phase]scheduler.Handler
	pending  map[scheduler.Key]scheduled
	running  map[scheduler.Key]bool
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		handlers: make(map[scheduler.Phase]scheduler.Handler),
		pending:  make(map[scheduler.Key]scheduled),
		running:  make(map[scheduler.Key]bool),
	}
}

func (f *fakeTimers) Handle(phase scheduler.Phase, h scheduler.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[phase] = h
}

func (f *fakeTimers) Schedule(msg scheduler.Message, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[msg.Key] = scheduled{msg: msg, delay: delay}
}

func (f *fakeTimers) Cancel(key scheduler.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[key]
	delete(f.pending, key)
	return ok
}

func (f *fakeTimers) Busy(key scheduler.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[key]
	return ok || f.running[key]
}

func (f *fakeTimers) Running(key scheduler.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[key]
}

func (f *fakeTimers) get(key scheduler.Key) (scheduled, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.pending[key]
	return s, ok
}

func (f *fakeTimers) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.got))
	for i, e := range p.got {
		out[i] = e.Type
	}
	return out
}

// blockingPublisher stalls every Publish until release is closed, like a
// sink whose broker is unreachable.
type blockingPublisher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ events.Event) error {
	p.calls.Add(1)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type harness struct {
	machine  *Machine
	store    *postgres.PostgresClient
	exchange *fakeExchange
	timers   *fakeTimers
	events   *recordingPublisher
	now      time.Time
}

var testOptions = Options{
	QuoteAsset:    "USDT",
	QuoteAmount:   "6",
	HoldingWindow: time.Hour,
	MinuteDelay:   time.Minute,
	StartLead:     time.Second,
	Location:      time.FixedZone("UTC+04:00", 4*60*60),
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    storagetest.NewClient(t),
		exchange: &fakeExchange{},
		timers:   newFakeTimers(),
		events:   &recordingPublisher{},
		now:      time.Now().UTC().Truncate(time.Second),
	}
	gw := gateway.New(h.exchange, h.store, gateway.Options{PollInterval: time.Millisecond}, nil, zap.NewNop())
	h.machine = New(h.store, gw, h.timers, h.events, testOptions, zap.NewNop(),
		WithClock(func() time.Time { return h.now }))
	return h
}

// listed inserts a symbol that listed at the given time.
func (h *harness) listed(t *testing.T, name string, at time.Time) *postgres.SymbolRecord {
	t.Helper()
	ctx := context.Background()
	s := &postgres.SymbolRecord{Name: name, ListingDate: at}
	if err := h.store.InsertSymbol(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.MarkListed(ctx, s.ID, 1, at); err != nil {
		t.Fatal(err)
	}
	got, err := h.store.GetSymbolByID(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func (h *harness) buy(t *testing.T, s *postgres.SymbolRecord, createdAt time.Time) *postgres.OrderRecord {
	t.Helper()
	o := &postgres.OrderRecord{
		OrderID:   fmt.Sprintf("%s-buy-%d", s.Name, createdAt.Unix()),
		Price:     "0.1",
		OrigQty:   "60.00",
		Side:      mexc.SideBuy,
		SymbolID:  s.ID,
		CreatedAt: createdAt,
	}
	if err := h.store.InsertOrder(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	return o
}
