package throttle

import (
	"sync"
	"time"

	"standx-grid-bot/internal/exchange"
)

type key struct {
	symbol string
	side   exchange.Side
	price  int64
}

// Gate suppresses repeated submissions at the same (symbol, side, price)
// inside a cooldown window. Overlapping reconciliation cycles and feed jitter
// would otherwise fire duplicate orders at one level.
type Gate struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[key]time.Time
}

func New(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[key]time.Time),
	}
}

// ShouldSkip reports whether a submission at this level is still cooling
// down. When it is not, the current time is recorded against the key and
// false is returned; when it is, state is left untouched.
func (g *Gate) ShouldSkip(symbol string, side exchange.Side, price int64) bool {
	k := key{symbol: symbol, side: side, price: price}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[k]; ok && now.Sub(last) < g.cooldown {
		return true
	}
	g.last[k] = now
	return false
}

// Sweep drops entries idle for longer than horizon. Entry count is bounded by
// price-step granularity in practice, so this only matters on long uptimes
// with drifting prices.
func (g *Gate) Sweep(horizon time.Duration) int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for k, last := range g.last {
		if now.Sub(last) >= horizon {
			delete(g.last, k)
			removed++
		}
	}
	return removed
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
