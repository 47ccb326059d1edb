package janitor

import (
	"context"
	"math/rand"
	"time"

	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/metrics"

	"go.uber.org/zap"
)

// Janitor bounds the population of very old resting orders. Each sweep
// samples eligible orders independently with a configured probability, so
// cancellations never form a deterministic, gameable pattern.
type Janitor struct {
	adapter    exchange.Adapter
	log        *zap.Logger
	staleAfter time.Duration
	prob       float64
	now        func() time.Time
	randFloat  func() float64
	cancelled  metrics.Counter
}

func New(adapter exchange.Adapter, log *zap.Logger, staleAfter time.Duration, prob float64) *Janitor {
	return &Janitor{
		adapter:    adapter,
		log:        log,
		staleAfter: staleAfter,
		prob:       prob,
		now:        time.Now,
		randFloat:  rand.Float64,
	}
}

func (j *Janitor) SetCancelCounter(c metrics.Counter) { j.cancelled = c }

// Sweep queries open orders and cancels a random sample of those unfilled
// for longer than the stale threshold.
func (j *Janitor) Sweep(ctx context.Context, symbol string) error {
	orders, err := j.adapter.OpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	ids := j.collect(orders)
	if len(ids) == 0 {
		return nil
	}
	j.log.Info("cancelling stale orders",
		zap.String("symbol", symbol),
		zap.Strings("order_ids", ids),
		zap.Float64("probability", j.prob),
	)
	if bulk, ok := j.adapter.(exchange.BulkCanceller); ok {
		if err := bulk.CancelOrdersByIDs(ctx, symbol, ids); err != nil {
			return err
		}
		j.count(len(ids))
		return nil
	}
	for _, id := range ids {
		if err := j.adapter.CancelOrder(ctx, id); err != nil {
			j.log.Warn("stale cancel failed", zap.String("order_id", id), zap.Error(err))
			continue
		}
		j.count(1)
	}
	return nil
}

func (j *Janitor) count(n int) {
	if j.cancelled == nil {
		return
	}
	for i := 0; i < n; i++ {
		j.cancelled.Inc()
	}
}

func (j *Janitor) collect(orders []exchange.OrderRecord) []string {
	nowMS := j.now().UnixMilli()
	staleMS := j.staleAfter.Milliseconds()
	var ids []string
	for _, rec := range orders {
		if !rec.Status.IsWorking() || rec.ID == "" || rec.CreatedAt == 0 {
			continue
		}
		if nowMS-rec.CreatedAt <= staleMS {
			continue
		}
		if j.randFloat() < j.prob {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}
