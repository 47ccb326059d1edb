package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/metrics"
	"standx-grid-bot/internal/throttle"

	"go.uber.org/zap"
)

type fakeBulkAdapter struct {
	fakeAdapter
	bulkErr   error
	bulkCalls [][]string
	mu        sync.Mutex
}

func (f *fakeBulkAdapter) CancelOrdersByIDs(ctx context.Context, symbol string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulkCalls = append(f.bulkCalls, append([]string(nil), ids...))
	return nil
}

type countingCounter struct {
	n int
}

func (c *countingCounter) Inc() { c.n++ }

func countingMetrics() (*metrics.Metrics, map[string]*countingCounter) {
	counters := map[string]*countingCounter{
		"placed":    {},
		"failed":    {},
		"cancelled": {},
		"skips":     {},
	}
	m := metrics.NewNoop()
	m.OrdersPlaced = counters["placed"]
	m.OrdersFailed = counters["failed"]
	m.OrdersCancelled = counters["cancelled"]
	m.ThrottleSkips = counters["skips"]
	return m, counters
}

func newTestExecutor(adapter exchange.Adapter, m *metrics.Metrics, cooldown time.Duration) *Executor {
	return NewExecutor(adapter, throttle.New(cooldown), m, nil, zap.NewNop(), "BTC-USD", 0.1)
}

func TestExecutorUsesBulkCancel(t *testing.T) {
	adapter := &fakeBulkAdapter{}
	m, counters := countingMetrics()
	executor := newTestExecutor(adapter, m, time.Millisecond)

	cancelled := executor.cancel(context.Background(), []string{"a", "b", "c"})
	if cancelled != 3 {
		t.Fatalf("expected 3 cancelled, got %d", cancelled)
	}
	if len(adapter.bulkCalls) != 1 || len(adapter.bulkCalls[0]) != 3 {
		t.Fatalf("expected one bulk call with 3 ids, got %v", adapter.bulkCalls)
	}
	if len(adapter.cancelled) != 0 {
		t.Fatalf("expected no sequential cancels, got %v", adapter.cancelled)
	}
	if counters["cancelled"].n != 3 {
		t.Fatalf("expected 3 cancel increments, got %d", counters["cancelled"].n)
	}
}

func TestExecutorFallsBackToSequentialCancel(t *testing.T) {
	adapter := &fakeBulkAdapter{bulkErr: errors.New("bulk endpoint down")}
	m, _ := countingMetrics()
	executor := newTestExecutor(adapter, m, time.Millisecond)

	cancelled := executor.cancel(context.Background(), []string{"a", "b"})
	if cancelled != 2 {
		t.Fatalf("expected 2 cancelled via fallback, got %d", cancelled)
	}
	if len(adapter.cancelled) != 2 {
		t.Fatalf("expected sequential cancels, got %v", adapter.cancelled)
	}
}

func TestExecutorPlacementFailureDoesNotAbort(t *testing.T) {
	adapter := &fakeAdapter{placeErr: errors.New("rejected")}
	m, counters := countingMetrics()
	executor := newTestExecutor(adapter, m, time.Millisecond)

	ctx := context.Background()
	placedLong, _ := executor.place(ctx, exchange.SideBuy, []int64{49950, 49975})
	placedShort, _ := executor.place(ctx, exchange.SideSell, []int64{50025})
	if placedLong != 0 || placedShort != 0 {
		t.Fatalf("expected 0 placed, got %d long %d short", placedLong, placedShort)
	}
	if counters["failed"].n != 3 {
		t.Fatalf("expected 3 failures recorded, got %d", counters["failed"].n)
	}
}

func TestExecutorCountsThrottleSkips(t *testing.T) {
	adapter := &fakeAdapter{}
	m, counters := countingMetrics()
	executor := newTestExecutor(adapter, m, time.Hour)
	ctx := context.Background()

	placed, skipped := executor.place(ctx, exchange.SideBuy, []int64{49950})
	if placed != 1 || skipped != 0 {
		t.Fatalf("first pass: placed=%d skipped=%d", placed, skipped)
	}
	placed, skipped = executor.place(ctx, exchange.SideBuy, []int64{49950})
	if placed != 0 || skipped != 1 {
		t.Fatalf("second pass: placed=%d skipped=%d", placed, skipped)
	}
	if counters["skips"].n != 1 {
		t.Fatalf("expected 1 skip increment, got %d", counters["skips"].n)
	}
}
