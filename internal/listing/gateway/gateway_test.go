package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"listingwatcher/internal/listing/metrics"
	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
	storagetest "listingwatcher/pkg/storage/postgres/test"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedExchange answers ticker lookups from prices in order, repeating the
// last one, and orders from order/orderErr.
type scriptedExchange struct {
	mu       sync.Mutex
	prices   []decimal.Decimal
	priceErr error
	calls    int

	order    *mexc.OrderResponse
	orderErr error
	params   [][]mexc.Param
}

func (s *scriptedExchange) GetTickerPrice(context.Context, string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.priceErr != nil {
		return decimal.Zero, s.priceErr
	}
	i := min(s.calls-1, len(s.prices)-1)
	return s.prices[i], nil
}

func (s *scriptedExchange) PlaceOrder(_ context.Context, params []mexc.Param) (*mexc.OrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, params)
	return s.order, s.orderErr
}

func prices(vals ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func newGateway(t *testing.T, ex Exchange, opts Options) (*Gateway, *postgres.PostgresClient, *metrics.Metrics) {
	t.Helper()
	store := storagetest.NewClient(t)
	m := metrics.New(nil)
	return New(ex, store, opts, m, zap.NewNop()), store, m
}

// go test -v --run TestPollPriceWaitsForListing
func TestPollPriceWaitsForListing(t *testing.T) {
	ex := &scriptedExchange{prices: prices(0, 0, 0, 42)}
	g, _, m := newGateway(t, ex, Options{PollInterval: time.Millisecond})

	price, err := g.PollPrice(context.Background(), "ABCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, 4, ex.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PricePolls.WithLabelValues(metrics.ResultZero)))
}

// go test -v --run TestPollPriceBounded
func TestPollPriceBounded(t *testing.T) {
	ex := &scriptedExchange{priceErr: errors.New("connection refused")}
	g, _, _ := newGateway(t, ex, Options{PollInterval: time.Millisecond, MaxAttempts: 5})

	_, err := g.PollPrice(context.Background(), "ABCUSDT")
	require.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Equal(t, 5, ex.calls)
}

// go test -v --run TestPollPriceCancelled
func TestPollPriceCancelled(t *testing.T) {
	ex := &scriptedExchange{prices: prices(0)}
	g, _, _ := newGateway(t, ex, Options{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.PollPrice(ctx, "ABCUSDT")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// go test -v --run TestSamplePrice
func TestSamplePrice(t *testing.T) {
	ex := &scriptedExchange{prices: prices(0, 7)}
	g, _, _ := newGateway(t, ex, Options{})

	_, err := g.SamplePrice(context.Background(), "ABCUSDT")
	require.ErrorIs(t, err, ErrPriceUnavailable, "zero is not a sample")

	price, err := g.SamplePrice(context.Background(), "ABCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "7", price.String())
}

// go test -v --run TestPlaceOrderPersists
func TestPlaceOrderPersists(t *testing.T) {
	ex := &scriptedExchange{order: &mexc.OrderResponse{
		OrderID: "C02__443776347957968896",
		Price:   "0.1000",
		OrigQty: "60.00",
		Side:    mexc.SideBuy,
	}}
	g, store, m := newGateway(t, ex, Options{})
	ctx := context.Background()

	symbol := &postgres.SymbolRecord{Name: "ABCUSDT", ListingDate: time.Now()}
	require.NoError(t, store.InsertSymbol(ctx, symbol))

	buy, err := g.PlaceOrder(ctx, symbol, mexc.MarketBuyParams("ABCUSDT", "6"), mexc.SideBuy, nil)
	require.NoError(t, err)
	assert.Equal(t, "60.00", buy.OrigQty, "quantity kept verbatim")
	assert.Nil(t, buy.ParentID)

	open, err := store.GetUnmatchedBuy(ctx, symbol.ID)
	require.NoError(t, err)
	assert.Equal(t, buy.ID, open.ID)

	ex.order = &mexc.OrderResponse{OrderID: "C02__2", Price: "0.2", OrigQty: "60.00"}
	sell, err := g.PlaceOrder(ctx, symbol, mexc.MarketSellParams("ABCUSDT", buy.OrigQty), mexc.SideSell, buy)
	require.NoError(t, err)
	assert.Equal(t, mexc.SideSell, sell.Side)
	require.NotNil(t, sell.ParentID)
	assert.Equal(t, buy.ID, *sell.ParentID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("SELL", metrics.ResultOK)))
}

// go test -v --run TestPlaceOrderRejected
func TestPlaceOrderRejected(t *testing.T) {
	ex := &scriptedExchange{orderErr: &mexc.APIError{StatusCode: 200, Msg: "insufficient balance"}}
	g, store, m := newGateway(t, ex, Options{})
	ctx := context.Background()

	symbol := &postgres.SymbolRecord{Name: "ABCUSDT", ListingDate: time.Now()}
	require.NoError(t, store.InsertSymbol(ctx, symbol))

	_, err := g.PlaceOrder(ctx, symbol, mexc.MarketBuyParams("ABCUSDT", "6"), mexc.SideBuy, nil)
	require.ErrorIs(t, err, ErrOrderFailed)

	var apiErr *mexc.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "insufficient balance", apiErr.Msg)

	orders, err := store.ListOrdersBySymbol(ctx, symbol.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("BUY", metrics.ResultFailed)))
}

type brokenStore struct{}

func (brokenStore) InsertOrder(context.Context, *postgres.OrderRecord) error {
	return errors.New("connection reset")
}

// go test -v --run TestPlaceOrderUnrecorded
func TestPlaceOrderUnrecorded(t *testing.T) {
	ex := &scriptedExchange{order: &mexc.OrderResponse{
		OrderID: "C02__9",
		Price:   "0.1000",
		OrigQty: "60.00",
		Side:    mexc.SideBuy,
	}}
	g := New(ex, brokenStore{}, Options{}, nil, zap.NewNop())
	symbol := &postgres.SymbolRecord{ID: 1, Name: "ABCUSDT"}

	_, err := g.PlaceOrder(context.Background(), symbol, mexc.MarketBuyParams("ABCUSDT", "6"), mexc.SideBuy, nil)
	require.ErrorIs(t, err, ErrOrderUnrecorded)
	assert.NotErrorIs(t, err, ErrOrderFailed, "the exchange took the order")

	var unrecorded *UnrecordedOrderError
	require.ErrorAs(t, err, &unrecorded)
	assert.Equal(t, "C02__9", unrecorded.OrderID)
	assert.Equal(t, "60.00", unrecorded.OrigQty)
	assert.Equal(t, mexc.SideBuy, unrecorded.Side)
	assert.Contains(t, err.Error(), "orderId=C02__9")
	assert.EqualError(t, unrecorded.Err, "connection reset")
}

// go test -v --run TestGatewayOverREST
func TestGatewayOverREST(t *testing.T) {
	var tickerCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ticker/price":
			tickerCalls++
			if tickerCalls < 3 {
				w.Write([]byte(`{"symbol":"ABCUSDT","price":"0"}`))
				return
			}
			w.Write([]byte(`{"symbol":"ABCUSDT","price":"0.125"}`))
		case "/order":
			w.Write([]byte(`{"msg":"insufficient balance"}`))
		}
	}))
	defer srv.Close()

	client := mexc.NewRESTClient(srv.URL, "key", "secret", time.Second, 0)
	g, store, _ := newGateway(t, client, Options{PollInterval: time.Millisecond})
	ctx := context.Background()

	price, err := g.PollPrice(ctx, "ABCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.125", price.String())
	assert.Equal(t, 3, tickerCalls)

	symbol := &postgres.SymbolRecord{Name: "ABCUSDT", ListingDate: time.Now()}
	require.NoError(t, store.InsertSymbol(ctx, symbol))
	_, err = g.PlaceOrder(ctx, symbol, mexc.MarketBuyParams("ABCUSDT", "6"), mexc.SideBuy, nil)
	assert.ErrorIs(t, err, ErrOrderFailed)
}
