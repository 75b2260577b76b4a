package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"listingwatcher/pkg/mexc"
	"listingwatcher/pkg/storage/postgres"
	storagetest "listingwatcher/pkg/storage/postgres/test"
)

func insertSymbol(t *testing.T, c *postgres.PostgresClient, name string) *postgres.SymbolRecord {
	t.Helper()
	s := &postgres.SymbolRecord{Name: name, ListingDate: time.Now().Add(time.Hour)}
	if err := c.InsertSymbol(context.Background(), s); err != nil {
		t.Fatalf("insert symbol %s: %v", name, err)
	}
	return s
}

func insertOrder(t *testing.T, c *postgres.PostgresClient, o *postgres.OrderRecord) *postgres.OrderRecord {
	t.Helper()
	if err := c.InsertOrder(context.Background(), o); err != nil {
		t.Fatalf("insert order %s: %v", o.OrderID, err)
	}
	return o
}

// go test -v --run TestSymbolUniqueName
func TestSymbolUniqueName(t *testing.T) {
	c := storagetest.NewClient(t)
	insertSymbol(t, c, "ABCUSDT")

	err := c.InsertSymbol(context.Background(), &postgres.SymbolRecord{Name: "ABCUSDT", ListingDate: time.Now()})
	if !errors.Is(err, postgres.ErrDuplicateSymbol) {
		t.Fatalf("expected ErrDuplicateSymbol, got %v", err)
	}

	if _, err := c.GetSymbolByName(context.Background(), "XYZUSDT"); !errors.Is(err, postgres.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// go test -v --run TestMarkListedOnce
func TestMarkListedOnce(t *testing.T) {
	ctx := context.Background()
	c := storagetest.NewClient(t)
	s := insertSymbol(t, c, "ABCUSDT")

	won, err := c.MarkListed(ctx, s.ID, 42, time.Now())
	if err != nil || !won {
		t.Fatalf("first MarkListed = %v, %v", won, err)
	}
	won, err = c.MarkListed(ctx, s.ID, 99, time.Now())
	if err != nil || won {
		t.Fatalf("second MarkListed = %v, %v; want false", won, err)
	}

	got, err := c.GetSymbolByID(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsListed || got.PriceOnStart == nil || *got.PriceOnStart != 42 || got.ListedAt == nil {
		t.Errorf("unexpected symbol after listing: %+v", got)
	}
}

// go test -v --run TestSymbolQueries
func TestSymbolQueries(t *testing.T) {
	ctx := context.Background()
	c := storagetest.NewClient(t)

	waiting := insertSymbol(t, c, "AAAUSDT")
	active := insertSymbol(t, c, "BBBUSDT")
	done := insertSymbol(t, c, "CCCUSDT")

	for _, s := range []*postgres.SymbolRecord{active, done} {
		if _, err := c.MarkListed(ctx, s.ID, 1, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if won, err := c.MarkFinished(ctx, done.ID); err != nil || !won {
		t.Fatalf("MarkFinished = %v, %v", won, err)
	}
	if won, _ := c.MarkFinished(ctx, waiting.ID); won {
		t.Error("unlisted symbol must not become finished")
	}

	notListed, err := c.ListSymbolsNotListed(ctx)
	if err != nil || len(notListed) != 1 || notListed[0].ID != waiting.ID {
		t.Errorf("not listed = %+v (%v)", notListed, err)
	}
	activeList, err := c.ListActiveSymbols(ctx)
	if err != nil || len(activeList) != 1 || activeList[0].ID != active.ID {
		t.Errorf("active = %+v (%v)", activeList, err)
	}
	listed, err := c.ListSymbolsListed(ctx)
	if err != nil || len(listed) != 2 {
		t.Errorf("listed = %d (%v), want 2", len(listed), err)
	}
}

// go test -v --run TestUnmatchedBuys
func TestUnmatchedBuys(t *testing.T) {
	ctx := context.Background()
	c := storagetest.NewClient(t)

	a := insertSymbol(t, c, "AAAUSDT")
	b := insertSymbol(t, c, "BBBUSDT")

	buyA := insertOrder(t, c, &postgres.OrderRecord{OrderID: "A-1", Price: "0.1", OrigQty: "60", Side: mexc.SideBuy, SymbolID: a.ID})
	buyB := insertOrder(t, c, &postgres.OrderRecord{OrderID: "B-1", Price: "0.2", OrigQty: "30", Side: mexc.SideBuy, SymbolID: b.ID})
	insertOrder(t, c, &postgres.OrderRecord{OrderID: "B-2", Price: "0.3", OrigQty: "30", Side: mexc.SideSell, SymbolID: b.ID, ParentID: &buyB.ID})

	open, err := c.ListUnmatchedBuys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != buyA.ID {
		t.Fatalf("unmatched buys = %+v", open)
	}
	if open[0].Symbol == nil || open[0].Symbol.Name != "AAAUSDT" {
		t.Errorf("symbol not preloaded: %+v", open[0].Symbol)
	}

	if _, err := c.GetUnmatchedBuy(ctx, b.ID); !errors.Is(err, postgres.ErrNotFound) {
		t.Errorf("sold symbol still has open buy: %v", err)
	}
	got, err := c.GetUnmatchedBuy(ctx, a.ID)
	if err != nil || got.OrigQty != "60" {
		t.Errorf("open buy of A = %+v (%v)", got, err)
	}

	if sold, _ := c.HasSellFor(ctx, buyB.ID); !sold {
		t.Error("expected sell for B")
	}
	if sold, _ := c.HasSellFor(ctx, buyA.ID); sold {
		t.Error("unexpected sell for A")
	}

	// one sell per buy
	err = c.InsertOrder(ctx, &postgres.OrderRecord{OrderID: "B-3", Price: "0.3", OrigQty: "30", Side: mexc.SideSell, SymbolID: b.ID, ParentID: &buyB.ID})
	if !errors.Is(err, postgres.ErrDuplicateOrder) {
		t.Errorf("second sell for one buy: %v", err)
	}
}

// go test -v --run TestHistoryAndStatistics
func TestHistoryAndStatistics(t *testing.T) {
	ctx := context.Background()
	c := storagetest.NewClient(t)
	s := insertSymbol(t, c, "ABCUSDT")
	if _, err := c.MarkListed(ctx, s.ID, 1, time.Now()); err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-3 * time.Hour)
	for i, p := range []float64{1.5, 2.5, 3.5} {
		h := &postgres.HistoryRecord{SymbolID: s.ID, Price: p, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := c.InsertHistory(ctx, h); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.CountHistory(ctx, s.ID)
	if err != nil || n != 3 {
		t.Fatalf("count = %d (%v), want 3", n, err)
	}

	if _, err := c.MarkFinished(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	finished, err := c.ListFinishedWithHistory(ctx)
	if err != nil || len(finished) != 1 {
		t.Fatalf("finished = %+v (%v)", finished, err)
	}
	if h := finished[0].History; len(h) != 3 || h[0].Price != 1.5 || h[2].Price != 3.5 {
		t.Errorf("history not ordered: %+v", h)
	}
}
