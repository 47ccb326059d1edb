package standx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"standx-grid-bot/internal/config"
	"standx-grid-bot/internal/exchange"

	"go.uber.org/zap"
)

// Adapter wires the REST client and the stream feed into the venue
// capability contract. Stream frames are normalized here; malformed frames
// are dropped and never reach a callback.
type Adapter struct {
	client *Client
	feed   *Feed
	log    *zap.Logger

	mu         sync.RWMutex
	priceFns   map[string]func(exchange.PriceSnapshot)
	orderFns   map[string]func(exchange.OrderRecord)
	posFns     map[string]func(exchange.PositionRecord)
	feedSymbol string

	runOnce sync.Once
}

func NewAdapter(cfg config.ExchangeConfig, log *zap.Logger) (*Adapter, error) {
	var signer *Signer
	if cfg.WalletKey != "" {
		var err error
		signer, err = NewSigner(cfg.WalletKey)
		if err != nil {
			return nil, err
		}
	}
	client, err := NewClient(cfg.BaseURL, cfg.Timeout, signer, cfg.APIToken, log)
	if err != nil {
		return nil, err
	}
	if cfg.WSURL == "" {
		return nil, errors.New("ws url is required")
	}
	feed := NewFeed(cfg.WSURL, cfg.ReconnectDelay, cfg.PingInterval, log)
	return &Adapter{
		client:   client,
		feed:     feed,
		log:      log,
		priceFns: make(map[string]func(exchange.PriceSnapshot)),
		orderFns: make(map[string]func(exchange.OrderRecord)),
		posFns:   make(map[string]func(exchange.PositionRecord)),
	}, nil
}

// Connect authenticates the REST session, dials the stream, and starts the
// feed loop. The loop lives on ctx and stops when it is cancelled.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.client.Login(ctx); err != nil {
		return err
	}
	if err := a.feed.Connect(ctx); err != nil {
		return err
	}
	if err := a.feed.Authenticate(ctx, a.client.Token()); err != nil {
		return err
	}
	a.runOnce.Do(func() {
		go func() {
			if err := a.feed.Run(ctx, a.dispatch); err != nil && ctx.Err() == nil && a.log != nil {
				a.log.Error("standx feed stopped", zap.Error(err))
			}
		}()
	})
	return nil
}

func (a *Adapter) SubscribePrices(ctx context.Context, symbol string, fn func(exchange.PriceSnapshot)) error {
	a.mu.Lock()
	a.priceFns[symbol] = fn
	a.feedSymbol = symbol
	a.mu.Unlock()
	sub := map[string]any{"method": "subscribe", "channel": "price", "symbol": symbol}
	return a.feed.Subscribe(ctx, sub)
}

func (a *Adapter) SubscribeOrders(ctx context.Context, symbol string, fn func(exchange.OrderRecord)) error {
	a.mu.Lock()
	a.orderFns[symbol] = fn
	a.feedSymbol = symbol
	a.mu.Unlock()
	sub := map[string]any{"method": "subscribe", "channel": "order"}
	return a.feed.Subscribe(ctx, sub)
}

func (a *Adapter) SubscribePositions(ctx context.Context, symbol string, fn func(exchange.PositionRecord)) error {
	a.mu.Lock()
	a.posFns[symbol] = fn
	a.feedSymbol = symbol
	a.mu.Unlock()
	sub := map[string]any{"method": "subscribe", "channel": "position"}
	return a.feed.Subscribe(ctx, sub)
}

func (a *Adapter) Ticker(ctx context.Context, symbol string) (exchange.PriceSnapshot, error) {
	return a.client.Ticker(ctx, symbol)
}

func (a *Adapter) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderRecord, error) {
	return a.client.OpenOrders(ctx, symbol)
}

func (a *Adapter) Positions(ctx context.Context, symbol string) ([]exchange.PositionRecord, error) {
	return a.client.Positions(ctx, symbol)
}

func (a *Adapter) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderRecord, error) {
	return a.client.PlaceOrder(ctx, req)
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	return a.client.CancelOrder(ctx, orderID)
}

func (a *Adapter) CancelOrdersByIDs(ctx context.Context, symbol string, ids []string) error {
	return a.client.CancelOrdersByIDs(ctx, symbol, ids)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) error {
	return a.client.CancelAllOrders(ctx, symbol)
}

func (a *Adapter) ClosePosition(ctx context.Context, symbol string, orderType exchange.OrderType) error {
	return a.client.ClosePosition(ctx, symbol, orderType)
}

func (a *Adapter) dispatch(raw json.RawMessage) {
	var envelope wsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		a.dropFrame("envelope", err)
		return
	}
	a.mu.RLock()
	symbol := envelope.Symbol
	if symbol == "" {
		symbol = a.feedSymbol
	}
	priceFn := a.priceFns[symbol]
	orderFn := a.orderFns[symbol]
	posFn := a.posFns[symbol]
	a.mu.RUnlock()

	switch envelope.Channel {
	case "price":
		var msg priceMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			a.dropFrame("price", err)
			return
		}
		if priceFn != nil {
			priceFn(normalizePrice(msg, time.Now().UnixMilli()))
		}
	case "order":
		var msg orderMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			a.dropFrame("order", err)
			return
		}
		record, ok := normalizeOrder(msg)
		if !ok {
			return
		}
		if orderFn != nil {
			orderFn(record)
		}
	case "position":
		var msg positionMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			a.dropFrame("position", err)
			return
		}
		record, ok := normalizePosition(msg, symbol)
		if !ok {
			return
		}
		if posFn != nil {
			posFn(record)
		}
	}
}

func (a *Adapter) dropFrame(channel string, err error) {
	if a.log != nil {
		a.log.Debug("dropping malformed frame", zap.String("channel", channel), zap.Error(err))
	}
}
