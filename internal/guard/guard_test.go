package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/market"

	"go.uber.org/zap"
)

type flattenAdapter struct {
	exchange.Adapter

	mu        sync.Mutex
	cancels   int
	closes    int
	positions []exchange.PositionRecord
	block     chan struct{}
}

func (f *flattenAdapter) Positions(ctx context.Context, symbol string) ([]exchange.PositionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, nil
}

func (f *flattenAdapter) CancelAllOrders(ctx context.Context, symbol string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	return nil
}

func (f *flattenAdapter) ClosePosition(ctx context.Context, symbol string, orderType exchange.OrderType) error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *flattenAdapter) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels, f.closes
}

func TestFlattenCancelsThenCloses(t *testing.T) {
	cache := market.NewCache(zap.NewNop())
	cache.UpdatePosition("BTC-USD", exchange.PositionRecord{Symbol: "BTC-USD", Size: 2, Side: exchange.PositionShort})
	fake := &flattenAdapter{}
	g := New(fake, cache, zap.NewNop())
	if err := g.flatten(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	cancels, closes := fake.counts()
	if cancels != 1 || closes != 1 {
		t.Fatalf("expected one cancel-all and one close, got %d/%d", cancels, closes)
	}
}

func TestFlattenSkipsZeroPosition(t *testing.T) {
	cache := market.NewCache(zap.NewNop())
	cache.UpdatePosition("BTC-USD", exchange.PositionRecord{Symbol: "BTC-USD", Size: 0, Side: exchange.PositionLong})
	fake := &flattenAdapter{}
	g := New(fake, cache, zap.NewNop())
	if err := g.flatten(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	cancels, closes := fake.counts()
	if cancels != 0 || closes != 0 {
		t.Fatalf("expected no actions for flat position, got %d/%d", cancels, closes)
	}
}

func TestFlattenFallsBackToRESTPosition(t *testing.T) {
	cache := market.NewCache(zap.NewNop())
	fake := &flattenAdapter{positions: []exchange.PositionRecord{{Symbol: "BTC-USD", Size: 1, Side: exchange.PositionLong}}}
	g := New(fake, cache, zap.NewNop())
	if err := g.flatten(context.Background(), "BTC-USD"); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if cancels, closes := fake.counts(); cancels != 1 || closes != 1 {
		t.Fatalf("expected flatten from REST position, got %d/%d", cancels, closes)
	}
}

func TestEnqueueDedupsWhileInFlight(t *testing.T) {
	cache := market.NewCache(zap.NewNop())
	cache.UpdatePosition("BTC-USD", exchange.PositionRecord{Symbol: "BTC-USD", Size: 1, Side: exchange.PositionLong})
	fake := &flattenAdapter{block: make(chan struct{})}
	g := New(fake, cache, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if !g.Enqueue("BTC-USD") {
		t.Fatalf("first enqueue should be accepted")
	}
	// Racing updates while the flatten is still blocked inside the adapter.
	deadline := time.After(time.Second)
	for g.Enqueue("BTC-USD") {
		select {
		case <-deadline:
			t.Fatalf("enqueue should dedup while flatten is in flight")
		default:
		}
	}
	close(fake.block)

	waitFor(t, func() bool {
		_, closes := fake.counts()
		return closes == 1
	})
	cancels, closes := fake.counts()
	if cancels != 1 || closes != 1 {
		t.Fatalf("expected exactly one flatten, got %d/%d", cancels, closes)
	}
}

func TestEnqueueAcceptedAgainAfterFlatten(t *testing.T) {
	cache := market.NewCache(zap.NewNop())
	cache.UpdatePosition("BTC-USD", exchange.PositionRecord{Symbol: "BTC-USD", Size: 1, Side: exchange.PositionLong})
	fake := &flattenAdapter{}
	g := New(fake, cache, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	if !g.Enqueue("BTC-USD") {
		t.Fatalf("first enqueue should be accepted")
	}
	waitFor(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.pending) == 0
	})
	if !g.Enqueue("BTC-USD") {
		t.Fatalf("enqueue after completed flatten should be accepted")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
