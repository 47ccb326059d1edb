package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"standx-grid-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// CycleRecord summarises one reconciliation cycle for offline analysis.
type CycleRecord struct {
	Time        time.Time
	Symbol      string
	RefPrice    float64
	Spread      float64
	LongLevels  int
	ShortLevels int
	Cancelled   int
	Placed      int
	Skipped     int
	DurationMS  int64
}

// OrderAction records a single order placement or cancellation attempt.
type OrderAction struct {
	Time     time.Time
	Symbol   string
	Action   string
	Side     string
	Price    int64
	Quantity float64
	OrderID  string
	Failed   bool
}

type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	cycles     chan CycleRecord
	actions    chan OrderAction
	started    atomic.Bool
	dropCycle  atomic.Uint64
	dropAction atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		cycles:  make(chan CycleRecord, queueSize),
		actions: make(chan OrderAction, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueCycle(record CycleRecord) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- record:
		return
	default:
		if w.dropCycle.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale cycle queue full")
		}
	}
}

func (w *Writer) EnqueueAction(action OrderAction) {
	if w == nil {
		return
	}
	select {
	case w.actions <- action:
		return
	default:
		if w.dropAction.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale action queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-w.cycles:
			w.writeCycle(ctx, record)
		case action := <-w.actions:
			w.writeAction(ctx, action)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		ref_price DOUBLE PRECISION NOT NULL,
		spread DOUBLE PRECISION NOT NULL,
		long_levels INTEGER NOT NULL,
		short_levels INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		placed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL
	)`, w.table("cycle_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		side TEXT NOT NULL,
		price BIGINT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		order_id TEXT NOT NULL,
		failed BOOLEAN NOT NULL
	)`, w.table("order_actions"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("cycle_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("timescale cycle_snapshots hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("order_actions"))); err != nil && w.log != nil {
		w.log.Warn("timescale order_actions hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeCycle(ctx context.Context, record CycleRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, ref_price, spread, long_levels, short_levels, cancelled, placed, skipped, duration_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)`, w.table("cycle_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Symbol,
		record.RefPrice,
		record.Spread,
		record.LongLevels,
		record.ShortLevels,
		record.Cancelled,
		record.Placed,
		record.Skipped,
		record.DurationMS,
	); err != nil && w.log != nil {
		w.log.Warn("timescale cycle insert failed", zap.Error(err))
	}
}

func (w *Writer) writeAction(ctx context.Context, action OrderAction) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, action, side, price, quantity, order_id, failed
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8
	)`, w.table("order_actions"))
	if _, err := w.db.ExecContext(ctx, query,
		action.Time,
		action.Symbol,
		action.Action,
		action.Side,
		action.Price,
		action.Quantity,
		action.OrderID,
		action.Failed,
	); err != nil && w.log != nil {
		w.log.Warn("timescale action insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
