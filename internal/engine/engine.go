package engine

import (
	"context"
	"errors"
	"time"

	"standx-grid-bot/internal/alerts"
	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/grid"
	"standx-grid-bot/internal/janitor"
	"standx-grid-bot/internal/market"
	"standx-grid-bot/internal/metrics"
	"standx-grid-bot/internal/reconcile"
	"standx-grid-bot/internal/signal"
	"standx-grid-bot/internal/state"
	"standx-grid-bot/internal/throttle"
	"standx-grid-bot/internal/timescale"

	"go.uber.org/zap"
)

// alertAfterFailures is the consecutive-failure streak that triggers a
// degradation alert.
const alertAfterFailures = 5

type Config struct {
	Symbol        string
	PriceStep     int64
	GridCount     int
	DefaultSpread float64
	OrderQuantity float64
	SleepInterval time.Duration

	RiskEnabled  bool
	ADXThreshold float64
	ADXMax       float64

	StaleEnabled bool
	IdleHorizon  time.Duration
}

// Engine runs the reconciliation loop: one cycle per tick, strictly
// serial. A failed cycle is logged and the next tick starts from scratch
// against fresh state.
type Engine struct {
	cfg      Config
	adapter  exchange.Adapter
	cache    *market.Cache
	executor *Executor
	gate     *throttle.Gate
	janitor  *janitor.Janitor
	signals  *signal.Poller
	store    state.Store
	writer   *timescale.Writer
	alerter  *alerts.Telegram
	metrics  *metrics.Metrics
	log      *zap.Logger

	failStreak int
}

func New(cfg Config, adapter exchange.Adapter, cache *market.Cache, gate *throttle.Gate, m *metrics.Metrics, log *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		adapter:  adapter,
		cache:    cache,
		executor: NewExecutor(adapter, gate, m, nil, log, cfg.Symbol, cfg.OrderQuantity),
		gate:     gate,
		metrics:  m,
		log:      log,
	}
}

// Optional collaborators. Each setter tolerates nil.

func (e *Engine) SetJanitor(j *janitor.Janitor) { e.janitor = j }
func (e *Engine) SetSignals(p *signal.Poller)   { e.signals = p }
func (e *Engine) SetStore(s state.Store)        { e.store = s }
func (e *Engine) SetAlerter(a *alerts.Telegram) { e.alerter = a }
func (e *Engine) SetWriter(w *timescale.Writer) {
	e.writer = w
	e.executor.writer = w
}

func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SleepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Cycle(ctx); err != nil {
				e.failStreak++
				e.metrics.CycleFailures.Inc()
				e.log.Warn("cycle failed", zap.Int("streak", e.failStreak), zap.Error(err))
				if e.failStreak == alertAfterFailures && e.alerter != nil {
					e.alerter.NotifyCycleFailures(ctx, e.cfg.Symbol, e.failStreak, err)
				}
				continue
			}
			e.failStreak = 0
		}
	}
}

// Cycle performs one full reconciliation pass. Cancellations always run
// before placements so transient over-quoting cannot occur.
func (e *Engine) Cycle(ctx context.Context) error {
	started := time.Now()
	symbol := e.cfg.Symbol

	refPrice, err := e.referencePrice(ctx, symbol)
	if err != nil {
		return err
	}

	spread := e.spread(refPrice)
	targetLong, targetShort, err := grid.Generate(refPrice, e.cfg.PriceStep, e.cfg.GridCount, spread)
	if err != nil {
		return err
	}

	curLong, curShort, err := e.observedLevels(ctx, symbol)
	if err != nil {
		return err
	}

	plan := reconcile.Diff(targetLong, targetShort, curLong, curShort)

	var res Result
	res.Cancelled = e.executor.cancel(ctx, plan.CancelIDs)

	// The stale sweep sits between cancellations and placements so it never
	// sees this cycle's fresh orders.
	if e.cfg.StaleEnabled && e.janitor != nil {
		if err := e.janitor.Sweep(ctx, symbol); err != nil {
			e.log.Warn("stale sweep failed", zap.Error(err))
		}
	}

	placed, skipped := e.executor.place(ctx, exchange.SideBuy, plan.PlaceLong)
	res.Placed, res.Skipped = placed, skipped
	placed, skipped = e.executor.place(ctx, exchange.SideSell, plan.PlaceShort)
	res.Placed += placed
	res.Skipped += skipped

	e.gate.Sweep(e.cfg.IdleHorizon)

	e.log.Info("cycle complete",
		zap.Float64("ref_price", refPrice),
		zap.Float64("spread", spread),
		zap.Int("target_long", len(targetLong)),
		zap.Int("target_short", len(targetShort)),
		zap.Int("cancelled", res.Cancelled),
		zap.Int("placed", res.Placed),
		zap.Int("skipped", res.Skipped),
	)

	e.persist(ctx, symbol, refPrice, spread, targetLong, targetShort, res, started)
	return nil
}

// referencePrice prefers the streaming cache and falls back to the REST
// ticker when the cache has nothing usable yet.
func (e *Engine) referencePrice(ctx context.Context, symbol string) (float64, error) {
	if snap, ok := e.cache.Price(symbol); ok {
		if ref := snap.Reference(); ref > 0 {
			return ref, nil
		}
	}
	snap, err := e.adapter.Ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	ref := snap.Reference()
	if ref <= 0 {
		return 0, errors.New("no usable reference price")
	}
	return ref, nil
}

// spread widens the quote distance when the trend signal is elevated. An
// absent or disabled signal keeps the configured default.
func (e *Engine) spread(refPrice float64) float64 {
	if !e.cfg.RiskEnabled || e.signals == nil {
		return e.cfg.DefaultSpread
	}
	value, ok := e.signals.Latest()
	return grid.DynamicSpread(value, ok, refPrice, e.cfg.DefaultSpread, e.cfg.ADXThreshold, e.cfg.ADXMax)
}

// observedLevels prefers the streaming order cache and falls back to the
// REST open-orders snapshot when the cache is empty.
func (e *Engine) observedLevels(ctx context.Context, symbol string) (long, short reconcile.Levels, err error) {
	orders := e.cache.OpenOrders(symbol)
	if len(orders) == 0 {
		orders, err = e.adapter.OpenOrders(ctx, symbol)
		if err != nil {
			return nil, nil, err
		}
	}
	long, short = reconcile.BySide(orders)
	return long, short, nil
}

func (e *Engine) persist(ctx context.Context, symbol string, refPrice, spread float64, targetLong, targetShort []int64, res Result, started time.Time) {
	now := time.Now()
	if e.store != nil {
		snapshot := state.CycleSnapshot{
			Symbol:      symbol,
			RefPrice:    refPrice,
			Spread:      spread,
			LongLevels:  targetLong,
			ShortLevels: targetShort,
			Cancelled:   res.Cancelled,
			Placed:      res.Placed,
			UpdatedAtMS: now.UnixMilli(),
		}
		if err := state.SaveCycleSnapshot(ctx, e.store, snapshot); err != nil {
			e.log.Warn("cycle snapshot persist failed", zap.Error(err))
		}
	}
	if e.writer != nil {
		e.writer.EnqueueCycle(timescale.CycleRecord{
			Time:        now,
			Symbol:      symbol,
			RefPrice:    refPrice,
			Spread:      spread,
			LongLevels:  len(targetLong),
			ShortLevels: len(targetShort),
			Cancelled:   res.Cancelled,
			Placed:      res.Placed,
			Skipped:     res.Skipped,
			DurationMS:  now.Sub(started).Milliseconds(),
		})
	}
}
