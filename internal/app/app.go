package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"standx-grid-bot/internal/alerts"
	"standx-grid-bot/internal/config"
	"standx-grid-bot/internal/engine"
	"standx-grid-bot/internal/exchange"
	"standx-grid-bot/internal/guard"
	"standx-grid-bot/internal/janitor"
	"standx-grid-bot/internal/market"
	"standx-grid-bot/internal/metrics"
	"standx-grid-bot/internal/signal"
	"standx-grid-bot/internal/standx"
	"standx-grid-bot/internal/state"
	"standx-grid-bot/internal/state/sqlite"
	"standx-grid-bot/internal/throttle"
	"standx-grid-bot/internal/timescale"

	"go.uber.org/zap"
)

// App wires the configured venue, the state cache, the safety workers, and
// the reconciliation engine together.
type App struct {
	cfg     *config.Config
	excfg   config.ExchangeConfig
	log     *zap.Logger
	store   *sqlite.Store
	adapter exchange.Adapter
	cache   *market.Cache
	guard   *guard.Guard
	engine  *engine.Engine
	poller  *signal.Poller
	writer  *timescale.Writer
	prom    *metrics.Prometheus
}

func New(cfg *config.Config, exchangeName string, log *zap.Logger) (*App, error) {
	excfg, err := cfg.SelectExchange(exchangeName)
	if err != nil {
		return nil, err
	}
	resolveCredentials(&excfg)
	adapter, err := newAdapter(excfg, log)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	cache := market.NewCache(log)
	guardWorker := guard.New(adapter, cache, log)
	cache.SetPositionListener(guardWorker)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	gate := throttle.New(cfg.Throttle.Cooldown)
	engineCfg := engine.Config{
		Symbol:        excfg.Symbol,
		PriceStep:     cfg.Grid.PriceStep,
		GridCount:     cfg.Grid.GridCount,
		DefaultSpread: cfg.Grid.PriceSpread,
		OrderQuantity: cfg.Grid.OrderQuantity,
		SleepInterval: cfg.Grid.SleepInterval(),
		RiskEnabled:   cfg.Risk.Enable,
		ADXThreshold:  cfg.Risk.ADXThreshold,
		ADXMax:        cfg.Risk.ADXMax,
		StaleEnabled:  cfg.CancelStaleOrders.Enable,
		IdleHorizon:   cfg.Throttle.IdleHorizon,
	}
	eng := engine.New(engineCfg, adapter, cache, gate, m, log)
	eng.SetStore(store)

	if cfg.CancelStaleOrders.Enable {
		j := janitor.New(adapter, log, cfg.CancelStaleOrders.StaleAfter(), cfg.CancelStaleOrders.Probability())
		j.SetCancelCounter(m.StaleCancelled)
		eng.SetJanitor(j)
	}

	var poller *signal.Poller
	if cfg.Risk.Enable {
		source := signal.NewBinanceADX(cfg.Risk.SignalBaseURL, cfg.Risk.CandleInterval, cfg.Risk.Period, excfg.Timeout)
		poller = signal.NewPoller(source, excfg.Symbol, cfg.Risk.RefreshInterval, log)
		eng.SetSignals(poller)
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		return nil, err
	}
	if writer != nil {
		eng.SetWriter(writer)
	}

	alerter := alerts.NewTelegram(cfg.Telegram, log)
	eng.SetAlerter(alerter)
	guardWorker.SetAlerter(alerter)
	guardWorker.SetFlattenCounter(m.Flattens)

	return &App{
		cfg:     cfg,
		excfg:   excfg,
		log:     log,
		store:   store,
		adapter: adapter,
		cache:   cache,
		guard:   guardWorker,
		engine:  eng,
		poller:  poller,
		writer:  writer,
		prom:    prom,
	}, nil
}

// resolveCredentials overlays venue credentials from the environment, keyed
// by exchange name: STANDX_API_TOKEN and STANDX_WALLET_KEY for the standx
// exchange. A set environment variable wins over the config file.
func resolveCredentials(excfg *config.ExchangeConfig) {
	prefix := strings.ToUpper(excfg.ExchangeName)
	if v := strings.TrimSpace(os.Getenv(prefix + "_API_TOKEN")); v != "" {
		excfg.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "_WALLET_KEY")); v != "" {
		excfg.WalletKey = v
	}
}

func newAdapter(excfg config.ExchangeConfig, log *zap.Logger) (exchange.Adapter, error) {
	switch excfg.ExchangeName {
	case "standx":
		return standx.NewAdapter(excfg, log)
	default:
		return nil, fmt.Errorf("unsupported exchange %q", excfg.ExchangeName)
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	if a.writer != nil {
		defer a.writer.Close()
	}

	if snapshot, ok, err := state.LoadCycleSnapshot(ctx, a.store); err != nil {
		a.log.Warn("previous cycle snapshot unreadable", zap.Error(err))
	} else if ok {
		a.log.Info("resuming after previous run",
			zap.String("symbol", snapshot.Symbol),
			zap.Float64("ref_price", snapshot.RefPrice),
			zap.Int("long_levels", len(snapshot.LongLevels)),
			zap.Int("short_levels", len(snapshot.ShortLevels)),
			zap.Int64("updated_at_ms", snapshot.UpdatedAtMS),
		)
	}

	if err := a.adapter.Connect(ctx); err != nil {
		return err
	}
	symbol := a.excfg.Symbol
	if err := a.adapter.SubscribePrices(ctx, symbol, func(snap exchange.PriceSnapshot) {
		a.cache.UpdatePrice(symbol, snap)
	}); err != nil {
		return err
	}
	if err := a.adapter.SubscribeOrders(ctx, symbol, func(rec exchange.OrderRecord) {
		a.cache.UpdateOrder(symbol, rec)
	}); err != nil {
		return err
	}
	if err := a.adapter.SubscribePositions(ctx, symbol, func(rec exchange.PositionRecord) {
		a.cache.UpdatePosition(symbol, rec)
	}); err != nil {
		return err
	}

	// Seed the order cache so the first cycle does not have to wait for
	// stream traffic.
	if orders, err := a.adapter.OpenOrders(ctx, symbol); err != nil {
		a.log.Warn("initial open orders fetch failed", zap.Error(err))
	} else {
		a.cache.ReplaceOrders(symbol, orders)
	}

	go a.guard.Run(ctx)
	if a.poller != nil {
		go a.poller.Run(ctx)
	}
	if a.writer != nil {
		a.writer.Start(ctx)
	}
	if a.prom != nil {
		go a.serveMetrics(ctx)
	}

	a.log.Info("engine starting",
		zap.String("exchange", a.excfg.ExchangeName),
		zap.String("symbol", symbol),
		zap.Duration("sleep_interval", a.cfg.Grid.SleepInterval()),
	)
	err := a.engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Warn("metrics server stopped", zap.Error(err))
	}
}
