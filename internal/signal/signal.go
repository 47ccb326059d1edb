package signal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source computes the latest trend-strength value for a symbol. The math
// lives behind this seam; the engine only consumes the cached scalar.
type Source interface {
	Value(ctx context.Context, symbol string) (float64, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func(ctx context.Context, symbol string) (float64, error)

func (f SourceFunc) Value(ctx context.Context, symbol string) (float64, error) {
	return f(ctx, symbol)
}

// Poller refreshes one symbol's signal on a fixed interval and caches the
// latest value. The cached value is unavailable until the first successful
// refresh; a failed refresh keeps the previous value.
type Poller struct {
	source   Source
	symbol   string
	interval time.Duration
	log      *zap.Logger

	mu    sync.RWMutex
	value float64
	ts    time.Time
	set   bool
}

func NewPoller(source Source, symbol string, interval time.Duration, log *zap.Logger) *Poller {
	return &Poller{source: source, symbol: symbol, interval: interval, log: log}
}

// Latest returns the cached signal value and whether one has been observed.
func (p *Poller) Latest() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.set
}

// LatestAt additionally reports when the cached value was written.
func (p *Poller) LatestAt() (float64, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.ts, p.set
}

// Run refreshes until ctx is cancelled. An erroring source degrades to the
// prior cached value; it never stops the loop.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	value, err := p.source.Value(ctx, p.symbol)
	if err != nil {
		p.log.Debug("signal refresh failed", zap.String("symbol", p.symbol), zap.Error(err))
		return
	}
	p.mu.Lock()
	p.value = value
	p.ts = time.Now()
	p.set = true
	p.mu.Unlock()
}
