package market

import (
	"sync"

	"standx-grid-bot/internal/exchange"

	"go.uber.org/zap"
)

// PositionListener is notified after every position write. The guard
// implements it; notification happens outside the cache lock so a slow
// listener cannot stall feed handlers.
type PositionListener interface {
	Enqueue(symbol string) bool
}

// Cache is the concurrency-safe store for the latest streamed market state.
// Feed handler goroutines write, the strategy loop reads. A single RWMutex
// guards all maps; readers never observe a partially written record.
type Cache struct {
	log      *zap.Logger
	listener PositionListener

	mu        sync.RWMutex
	prices    map[string]exchange.PriceSnapshot
	orders    map[string]map[string]exchange.OrderRecord
	positions map[string]exchange.PositionRecord
}

func NewCache(log *zap.Logger) *Cache {
	return &Cache{
		log:       log,
		prices:    make(map[string]exchange.PriceSnapshot),
		orders:    make(map[string]map[string]exchange.OrderRecord),
		positions: make(map[string]exchange.PositionRecord),
	}
}

// SetPositionListener wires the flatten queue. Must be called before feed
// handlers start.
func (c *Cache) SetPositionListener(l PositionListener) {
	c.listener = l
}

func (c *Cache) UpdatePrice(symbol string, snap exchange.PriceSnapshot) {
	c.mu.Lock()
	c.prices[symbol] = snap
	c.mu.Unlock()
}

func (c *Cache) UpdateOrder(symbol string, rec exchange.OrderRecord) {
	if rec.ID == "" {
		return
	}
	c.mu.Lock()
	bySymbol, ok := c.orders[symbol]
	if !ok {
		bySymbol = make(map[string]exchange.OrderRecord)
		c.orders[symbol] = bySymbol
	}
	bySymbol[rec.ID] = rec
	c.mu.Unlock()
}

// ReplaceOrders swaps the whole order map for a symbol with a REST snapshot.
// Orders absent from the snapshot are implicitly removed.
func (c *Cache) ReplaceOrders(symbol string, recs []exchange.OrderRecord) {
	bySymbol := make(map[string]exchange.OrderRecord, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		bySymbol[rec.ID] = rec
	}
	c.mu.Lock()
	c.orders[symbol] = bySymbol
	c.mu.Unlock()
}

func (c *Cache) UpdatePosition(symbol string, rec exchange.PositionRecord) {
	if symbol == "" {
		return
	}
	c.mu.Lock()
	c.positions[symbol] = rec
	c.mu.Unlock()
	if c.listener != nil {
		if c.listener.Enqueue(symbol) && c.log != nil {
			c.log.Debug("flatten enqueued", zap.String("symbol", symbol))
		}
	}
}

func (c *Cache) Price(symbol string) (exchange.PriceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.prices[symbol]
	return snap, ok
}

func (c *Cache) OpenOrders(symbol string) []exchange.OrderRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bySymbol := c.orders[symbol]
	if len(bySymbol) == 0 {
		return nil
	}
	out := make([]exchange.OrderRecord, 0, len(bySymbol))
	for _, rec := range bySymbol {
		out = append(out, rec)
	}
	return out
}

func (c *Cache) Position(symbol string) (exchange.PositionRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.positions[symbol]
	return rec, ok
}
