package engine

import (
	"context"
	"time"

	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/metrics"
	"standx-grid-bot/internal/throttle"
	"standx-grid-bot/internal/timescale"

	"go.uber.org/zap"
)

// Executor applies reconciliation actions against the venue: order
// cancellations and throttle-gated placements, run as separate phases by the
// engine. A single failed order never aborts the rest of a batch.
type Executor struct {
	adapter exchange.Adapter
	gate    *throttle.Gate
	metrics *metrics.Metrics
	writer  *timescale.Writer
	log     *zap.Logger

	symbol   string
	quantity float64
}

func NewExecutor(adapter exchange.Adapter, gate *throttle.Gate, m *metrics.Metrics, writer *timescale.Writer, log *zap.Logger, symbol string, quantity float64) *Executor {
	return &Executor{
		adapter:  adapter,
		gate:     gate,
		metrics:  m,
		writer:   writer,
		log:      log,
		symbol:   symbol,
		quantity: quantity,
	}
}

// Result counts what one plan execution actually did.
type Result struct {
	Cancelled int
	Placed    int
	Skipped   int
}

// cancel removes the given orders, using the bulk endpoint when the venue
// offers one. On bulk failure it falls back to per-order cancels so one bad
// id cannot pin the whole batch.
func (e *Executor) cancel(ctx context.Context, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	if bulk, ok := e.adapter.(exchange.BulkCanceller); ok {
		err := bulk.CancelOrdersByIDs(ctx, e.symbol, ids)
		if err == nil {
			for _, id := range ids {
				e.metrics.OrdersCancelled.Inc()
				e.record("cancel", "", 0, id, false)
			}
			return len(ids)
		}
		e.log.Warn("bulk cancel failed, falling back to sequential", zap.Error(err))
	}
	cancelled := 0
	for _, id := range ids {
		if err := e.adapter.CancelOrder(ctx, id); err != nil {
			e.metrics.CancelsFailed.Inc()
			e.record("cancel", "", 0, id, true)
			e.log.Warn("cancel failed", zap.String("order_id", id), zap.Error(err))
			continue
		}
		cancelled++
		e.metrics.OrdersCancelled.Inc()
		e.record("cancel", "", 0, id, false)
	}
	return cancelled
}

func (e *Executor) place(ctx context.Context, side exchange.Side, prices []int64) (placed, skipped int) {
	for _, price := range prices {
		if e.gate.ShouldSkip(e.symbol, side, price) {
			skipped++
			e.metrics.ThrottleSkips.Inc()
			e.log.Debug("placement suppressed by cooldown",
				zap.String("side", string(side)), zap.Int64("price", price))
			continue
		}
		req := exchange.OrderRequest{
			Symbol:      e.symbol,
			Side:        side,
			Type:        exchange.OrderTypeLimit,
			Quantity:    e.quantity,
			Price:       price,
			TimeInForce: "gtc",
		}
		record, err := e.adapter.PlaceOrder(ctx, req)
		if err != nil {
			e.metrics.OrdersFailed.Inc()
			e.record("place", side, price, "", true)
			e.log.Warn("placement failed",
				zap.String("side", string(side)), zap.Int64("price", price), zap.Error(err))
			continue
		}
		placed++
		e.metrics.OrdersPlaced.Inc()
		e.record("place", side, price, record.ID, false)
		e.log.Info("order placed",
			zap.String("side", string(side)), zap.Int64("price", price), zap.String("order_id", record.ID))
	}
	return placed, skipped
}

func (e *Executor) record(action string, side exchange.Side, price int64, orderID string, failed bool) {
	if e.writer == nil {
		return
	}
	e.writer.EnqueueAction(timescale.OrderAction{
		Time:     time.Now(),
		Symbol:   e.symbol,
		Action:   action,
		Side:     string(side),
		Price:    price,
		Quantity: e.quantity,
		OrderID:  orderID,
		Failed:   failed,
	})
}
