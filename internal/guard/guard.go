package guard

import (
	"context"
	"sync"

	"standx-grid-bot/internal/alerts"
	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/market"
	"standx-grid-bot/internal/metrics"

	"go.uber.org/zap"
)

const queueDepth = 64

// Guard flattens any residual position: on a position update it cancels all
// resting orders for the symbol and closes the exposure with a market order.
// A single consumer drains the queue, so flattens for one symbol never race;
// the pending set keeps racing position updates from re-enqueueing a symbol
// while its flatten is still in flight.
type Guard struct {
	adapter  exchange.Adapter
	cache    *market.Cache
	log      *zap.Logger
	alerter  *alerts.Telegram
	flattens metrics.Counter

	mu      sync.Mutex
	pending map[string]struct{}
	queue   chan string
}

func New(adapter exchange.Adapter, cache *market.Cache, log *zap.Logger) *Guard {
	return &Guard{
		adapter: adapter,
		cache:   cache,
		log:     log,
		pending: make(map[string]struct{}),
		queue:   make(chan string, queueDepth),
	}
}

func (g *Guard) SetAlerter(a *alerts.Telegram)       { g.alerter = a }
func (g *Guard) SetFlattenCounter(c metrics.Counter) { g.flattens = c }

// Enqueue schedules a flatten for symbol. It reports true when the symbol was
// newly queued and false when a flatten is already pending or in flight.
func (g *Guard) Enqueue(symbol string) bool {
	if symbol == "" {
		return false
	}
	g.mu.Lock()
	if _, ok := g.pending[symbol]; ok {
		g.mu.Unlock()
		return false
	}
	g.pending[symbol] = struct{}{}
	g.mu.Unlock()
	select {
	case g.queue <- symbol:
		return true
	default:
		// Queue full: drop the task but clear pending so the next position
		// update can retry.
		g.mu.Lock()
		delete(g.pending, symbol)
		g.mu.Unlock()
		g.log.Warn("flatten queue full, dropping task", zap.String("symbol", symbol))
		return false
	}
}

// Run drains the flatten queue until ctx is cancelled. Strictly one flatten
// at a time per engine instance.
func (g *Guard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case symbol := <-g.queue:
			if err := g.flatten(ctx, symbol); err != nil {
				g.log.Warn("flatten failed", zap.String("symbol", symbol), zap.Error(err))
			}
			g.mu.Lock()
			delete(g.pending, symbol)
			g.mu.Unlock()
		}
	}
}

func (g *Guard) flatten(ctx context.Context, symbol string) error {
	pos, ok := g.position(ctx, symbol)
	if !ok || pos.Size == 0 {
		return nil
	}
	g.log.Info("flattening position",
		zap.String("symbol", symbol),
		zap.Float64("size", pos.Size),
		zap.String("side", string(pos.Side)),
	)
	if err := g.adapter.CancelAllOrders(ctx, symbol); err != nil {
		return err
	}
	if err := g.adapter.ClosePosition(ctx, symbol, exchange.OrderTypeMarket); err != nil {
		return err
	}
	g.log.Info("position flattened", zap.String("symbol", symbol))
	if g.flattens != nil {
		g.flattens.Inc()
	}
	if g.alerter != nil {
		g.alerter.NotifyFlatten(ctx, symbol, pos.Size)
	}
	return nil
}

func (g *Guard) position(ctx context.Context, symbol string) (exchange.PositionRecord, bool) {
	if pos, ok := g.cache.Position(symbol); ok {
		return pos, true
	}
	positions, err := g.adapter.Positions(ctx, symbol)
	if err != nil {
		g.log.Warn("position query failed", zap.String("symbol", symbol), zap.Error(err))
		return exchange.PositionRecord{}, false
	}
	if len(positions) == 0 {
		return exchange.PositionRecord{}, false
	}
	return positions[0], true
}
