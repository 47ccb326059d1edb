package janitor

import (
	"context"
	"testing"
	"time"

	"standx-grid-bot/internal/exchange"

	"go.uber.org/zap"
)

type fakeAdapter struct {
	exchange.Adapter
	orders    []exchange.OrderRecord
	bulkIDs   []string
	singleIDs []string
}

func (f *fakeAdapter) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderRecord, error) {
	return f.orders, nil
}

func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID string) error {
	f.singleIDs = append(f.singleIDs, orderID)
	return nil
}

type fakeBulkAdapter struct {
	fakeAdapter
}

func (f *fakeBulkAdapter) CancelOrdersByIDs(ctx context.Context, symbol string, ids []string) error {
	f.bulkIDs = append(f.bulkIDs, ids...)
	return nil
}

func staleOrders(nowMS int64) []exchange.OrderRecord {
	return []exchange.OrderRecord{
		{ID: "1", Status: exchange.StatusOpen, CreatedAt: nowMS - 10_000},
		{ID: "2", Status: exchange.StatusPending, CreatedAt: nowMS - 10_000},
		{ID: "3", Status: exchange.StatusPartiallyFilled, CreatedAt: nowMS - 10_000},
		{ID: "4", Status: exchange.StatusFilled, CreatedAt: nowMS - 10_000},
		{ID: "5", Status: exchange.StatusOpen, CreatedAt: nowMS - 1_000},
		{ID: "", Status: exchange.StatusOpen, CreatedAt: nowMS - 10_000},
		{ID: "6", Status: exchange.StatusOpen},
	}
}

func newTestJanitor(adapter exchange.Adapter, prob float64) *Janitor {
	j := New(adapter, zap.NewNop(), 5*time.Second, prob)
	j.now = func() time.Time { return time.UnixMilli(1_000_000) }
	return j
}

func TestSweepCertainProbabilityCancelsAllEligible(t *testing.T) {
	fake := &fakeBulkAdapter{}
	fake.orders = staleOrders(1_000_000)
	j := newTestJanitor(fake, 1.0)
	if err := j.Sweep(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(fake.bulkIDs) != 3 {
		t.Fatalf("expected ids 1,2,3 cancelled, got %v", fake.bulkIDs)
	}
}

func TestSweepZeroProbabilityCancelsNone(t *testing.T) {
	fake := &fakeBulkAdapter{}
	fake.orders = staleOrders(1_000_000)
	j := newTestJanitor(fake, 0.0)
	if err := j.Sweep(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(fake.bulkIDs) != 0 {
		t.Fatalf("expected no cancellations, got %v", fake.bulkIDs)
	}
}

func TestSweepFallsBackToSequentialCancel(t *testing.T) {
	fake := &fakeAdapter{}
	fake.orders = staleOrders(1_000_000)
	j := newTestJanitor(fake, 1.0)
	if err := j.Sweep(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(fake.singleIDs) != 3 {
		t.Fatalf("expected 3 sequential cancels, got %v", fake.singleIDs)
	}
}

func TestSweepSamples(t *testing.T) {
	fake := &fakeBulkAdapter{}
	fake.orders = staleOrders(1_000_000)
	j := newTestJanitor(fake, 0.5)
	draws := []float64{0.9, 0.1, 0.7}
	i := 0
	j.randFloat = func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}
	if err := j.Sweep(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(fake.bulkIDs) != 1 || fake.bulkIDs[0] != "2" {
		t.Fatalf("expected only id 2 sampled, got %v", fake.bulkIDs)
	}
}
